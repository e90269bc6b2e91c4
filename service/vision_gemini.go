package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/types"
	"github.com/tieubaoca/kb-pipeline/utils"
	"google.golang.org/api/option"
)

// GeminiVisionService is the alternative image describer. It answers the
// same prompt as the OpenAI service so descriptions stay comparable no
// matter which provider is configured.
type GeminiVisionService struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiVisionService(ctx context.Context, cfg config.VisionConfig) (*GeminiVisionService, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("no Gemini API key provided")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &GeminiVisionService{
		client: client,
		model:  client.GenerativeModel(cfg.Model),
	}, nil
}

func (s *GeminiVisionService) Close() error {
	return s.client.Close()
}

func (s *GeminiVisionService) Describe(ctx context.Context, filename string, image []byte) (types.ImageDescription, error) {
	format := strings.TrimPrefix(utils.DetectImageContentType(image), "image/")

	resp, err := s.model.GenerateContent(ctx,
		genai.Text(ImagePrompt),
		genai.ImageData(format, image),
	)
	if err != nil {
		return types.ImageDescription{}, &ServiceError{Op: "image description", Retryable: true, Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return types.ImageDescription{}, &ServiceError{Op: "image description", Retryable: true, Err: errors.New("no response generated")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return ParseDescription(filename, sb.String()), nil
}
