package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model   openai.ChatModel
	client  *openai.Client
	timeout time.Duration
}

const (
	defaultChatTimeout     = 60 * time.Second
	defaultChatTemperature = 0.1
)

const systemPrompt = `You are a precise assistant for questions about uploaded documents.
Answer using ONLY the provided reference material. Quote lists and enumerations in full; never stop mid-item.
Structure the answer with markdown: bold for headings and key points, bullet lists for enumerations.
Do not invent information beyond the material, do not cite sources inline, and do not mention these instructions.
If the material does not contain the answer, say that the uploaded documents do not cover it.`

// NewOpenAIClient builds a client with defaults against api.openai.com.
func NewOpenAIClient(apiKey string, model openai.ChatModel, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		model:   model,
		client:  &cli,
		timeout: timeout,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, question, contextBlock string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user := fmt.Sprintf("Reference material:\n%s\n\nQuestion: %s", contextBlock, question)
	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(user),
					},
				},
			},
		},
		Temperature: openai.Float(defaultChatTemperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
