package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig configures an OpenAI compatible chat completion client
type OpenAIConfig struct {
	Model   string
	APIKey  string
	BaseURL string // Optional: for OpenAI compatible APIs
}

// OpenAIClient generates text with the chat completions API
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a client. Additional request options are applied
// after the configured key and base url.
func NewOpenAIClient(config OpenAIConfig, opts ...openaiopt.RequestOption) (*OpenAIClient, error) {
	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("model must not be empty")
	}

	var clientOpts []openaiopt.RequestOption
	if config.APIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(config.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIClient{
		client: openai.NewClient(clientOpts...),
		model:  config.Model,
	}, nil
}

// Name returns the provider and model name
func (c *OpenAIClient) Name() string {
	return "openai/" + c.model
}

// Generate returns the text of the first choice
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// StreamGenerate streams the content deltas of the first choice
func (c *OpenAIClient) StreamGenerate(ctx context.Context, req Request) (Stream, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return &openAIStream{stream: stream}, nil
}

func (c *OpenAIClient) params(req Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(req.System),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(req.Prompt),
			},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		// The first stop sequence only
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfString: openai.String(req.Stop[0]),
		}
	}
	return params
}

// openAIStream adapts the SSE chunk stream, skipping chunks without content
type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	chunk  string
}

func (s *openAIStream) Next() bool {
	for s.stream.Next() {
		current := s.stream.Current()
		if len(current.Choices) == 0 || current.Choices[0].Delta.Content == "" {
			continue
		}
		s.chunk = current.Choices[0].Delta.Content
		return true
	}
	return false
}

func (s *openAIStream) Chunk() string { return s.chunk }

func (s *openAIStream) Err() error { return s.stream.Err() }

func (s *openAIStream) Close() error { return s.stream.Close() }
