package llm

import (
	"context"
	"strings"
)

// ExtractiveClient answers without a language model by quoting the first
// numbered passage of the prompt. It is deterministic and needs no network,
// which makes it useful for demos and tests.
type ExtractiveClient struct{}

// Name returns "extractive"
func (ExtractiveClient) Name() string { return "extractive" }

// Generate returns the first passage with its citation, or a no-context
// notice if the prompt has no passage
func (ExtractiveClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	for _, line := range strings.Split(req.Prompt, "\n") {
		if !strings.HasPrefix(line, "[") {
			continue
		}
		end := strings.Index(line, "] ")
		if end < 0 {
			continue
		}
		text := strings.TrimSpace(line[end+2:])
		answer := text + " " + line[:end+1]
		if req.MaxTokens > 0 {
			words := strings.Fields(text)
			if len(words) > req.MaxTokens {
				answer = strings.Join(words[:req.MaxTokens], " ") + " " + line[:end+1]
			}
		}
		return answer, nil
	}

	return "No relevant information was found.", nil
}

// StreamGenerate streams the generated answer word by word
func (c ExtractiveClient) StreamGenerate(ctx context.Context, req Request) (Stream, error) {
	answer, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	words := strings.SplitAfter(answer, " ")
	return NewSliceStream(words, nil), nil
}
