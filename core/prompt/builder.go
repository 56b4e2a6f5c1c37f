package prompt

import (
	"fmt"
	"strings"

	"github.com/siherrmann/hybridrag/model"
)

// DefaultSystemPrompt instructs the model to answer from the numbered context only
const DefaultSystemPrompt = "You answer questions using only the numbered context passages you are given. " +
	"Cite every passage you use by its number in square brackets, for example [1]. " +
	"If the context does not contain the answer, say that no relevant information was found."

// NoContextSystemPrompt is used when retrieval found nothing
const NoContextSystemPrompt = "No relevant documents were found for this question. " +
	"Say so clearly and do not invent an answer."

// Context is the built prompt together with the provenance of every included result
type Context struct {
	System   string
	Prompt   string
	Included []model.Provenance
	Dropped  int // Results left out to stay within the token budget
	Tokens   int // Tokens used by the included passages
	// NoContext is set when no passage made it into the prompt
	NoContext bool
}

// Builder assembles ranked results into a numbered, token-bounded prompt
type Builder struct {
	Counter      TokenCounter
	SystemPrompt string
}

// NewBuilder creates a builder. A nil counter uses the estimator.
func NewBuilder(counter TokenCounter) *Builder {
	if counter == nil {
		counter = EstimateCounter{}
	}
	return &Builder{Counter: counter, SystemPrompt: DefaultSystemPrompt}
}

// Build numbers the results in ranked order as [1], [2], ... and stops at the
// first passage that would exceed maxTokens, dropping it and every result
// after it. A passage is included whole or not at all. A maxTokens of 0 or
// less means no budget.
func (b *Builder) Build(ranked []model.RetrievalResult, query string, maxTokens int) Context {
	counter := b.Counter
	if counter == nil {
		counter = EstimateCounter{}
	}

	c := Context{Included: []model.Provenance{}}
	var passages strings.Builder
	for i, r := range ranked {
		citation := len(c.Included) + 1
		passage := formatPassage(citation, r)
		tokens := counter.Count(passage)
		if maxTokens > 0 && c.Tokens+tokens > maxTokens {
			c.Dropped = len(ranked) - i
			break
		}

		passages.WriteString(passage)
		c.Tokens += tokens
		c.Included = append(c.Included, model.Provenance{
			Citation: citation,
			ID:       r.ID,
			Score:    r.Score,
			Source:   r.Source,
		})
	}

	question := "Question: " + strings.TrimSpace(query)
	if len(c.Included) == 0 {
		c.NoContext = true
		c.System = NoContextSystemPrompt
		c.Prompt = question
		return c
	}

	c.System = b.SystemPrompt
	if c.System == "" {
		c.System = DefaultSystemPrompt
	}
	c.Prompt = "Context:\n" + passages.String() + question
	return c
}

// formatPassage renders one numbered passage followed by its annotation line
func formatPassage(citation int, r model.RetrievalResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s\n", citation, strings.TrimSpace(r.Payload.Text))

	annotation := []string{"source: " + string(r.Source)}
	if r.Payload.DocumentRID != "" {
		annotation = append(annotation, "document: "+r.Payload.DocumentRID)
	}
	if r.Payload.ChunkID != "" && r.Payload.ChunkID != r.ID {
		annotation = append(annotation, "chunk: "+r.Payload.ChunkID)
	}
	annotation = append(annotation, "id: "+r.ID)
	fmt.Fprintf(&sb, "(%s)\n\n", strings.Join(annotation, ", "))

	return sb.String()
}
