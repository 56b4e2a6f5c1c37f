package llm

import (
	"context"
	"strings"
)

// Request is a single generation request
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
	Stop      []string
}

// Client is a language-model provider
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	// StreamGenerate returns a fresh stream for every call
	StreamGenerate(ctx context.Context, req Request) (Stream, error)
	// Name identifies the provider in errors
	Name() string
}

// Stream is a finite, non restartable sequence of text chunks.
// Next advances to the next chunk and returns false when the stream ended
// or failed; Err then reports the failure.
type Stream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}

// Collect reads the stream to its end, calling onChunk for every chunk.
// It stops when ctx is done and returns the text collected so far together
// with the context error, so a cancelled result can be marked partial.
func Collect(ctx context.Context, stream Stream, onChunk func(chunk string)) (string, error) {
	defer stream.Close()

	var sb strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		if !stream.Next() {
			break
		}
		chunk := stream.Chunk()
		sb.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	if err := stream.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sb.String(), ctxErr
		}
		return sb.String(), err
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}

	return sb.String(), nil
}

// SliceStream streams a fixed list of chunks
type SliceStream struct {
	chunks  []string
	current string
	err     error
	closed  bool
}

// NewSliceStream creates a stream over chunks that fails with err, if
// not nil, after the last chunk
func NewSliceStream(chunks []string, err error) *SliceStream {
	return &SliceStream{chunks: chunks, err: err}
}

func (s *SliceStream) Next() bool {
	if s.closed || len(s.chunks) == 0 {
		return false
	}
	s.current, s.chunks = s.chunks[0], s.chunks[1:]
	return true
}

func (s *SliceStream) Chunk() string { return s.current }

func (s *SliceStream) Err() error {
	if len(s.chunks) > 0 && !s.closed {
		return nil
	}
	return s.err
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}
