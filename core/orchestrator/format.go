package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/siherrmann/hybridrag/model"
)

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Cited returns the provenance entries referenced as [n] in text, in citation
// order. If text cites none of them, all entries are returned.
func Cited(text string, provenance []model.Provenance) []model.Provenance {
	cited := make(map[int]bool)
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			cited[n] = true
		}
	}

	var result []model.Provenance
	for _, p := range provenance {
		if cited[p.Citation] {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return provenance
	}
	return result
}

// Format attaches the citation footer to the generated text. Without context
// the footer is left out; if generation was skipped the answer says that no
// relevant information was found.
func Format(raw string, provenance []model.Provenance, noContext bool, generated bool) string {
	if !generated {
		return NoContextAnswer
	}

	text := strings.TrimSpace(raw)
	if noContext || len(provenance) == 0 {
		return text
	}

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\nSources:")
	for _, p := range Cited(text, provenance) {
		fmt.Fprintf(&sb, "\n[%d] %s (%s)", p.Citation, p.ID, p.Source)
	}
	return sb.String()
}
