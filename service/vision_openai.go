package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/types"
	"github.com/tieubaoca/kb-pipeline/utils"
)

// OpenAIVisionService describes images with a vision-capable chat model
// through an OpenAI-compatible endpoint.
type OpenAIVisionService struct {
	client *openai.Client
	model  string
}

func NewOpenAIVisionService(cfg config.VisionConfig) *OpenAIVisionService {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.AIEndpoint != "" {
		clientConfig.BaseURL = cfg.AIEndpoint
	}
	return &OpenAIVisionService{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (s *OpenAIVisionService) Describe(ctx context.Context, filename string, image []byte) (types.ImageDescription, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s",
		utils.DetectImageContentType(image),
		base64.StdEncoding.EncodeToString(image))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: ImagePrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURI},
					},
				},
			},
		},
		MaxTokens: 500,
	})
	if err != nil {
		return types.ImageDescription{}, &ServiceError{Op: "image description", Retryable: true, Err: err}
	}
	if len(resp.Choices) == 0 {
		return types.ImageDescription{}, &ServiceError{Op: "image description", Retryable: true, Err: errors.New("no response generated")}
	}

	return ParseDescription(filename, resp.Choices[0].Message.Content), nil
}
