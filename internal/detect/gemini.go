package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/pkg/logging"
)

// GeminiDetector classifies PHI via the Gemini API.
type GeminiDetector struct {
	client *genai.Client
	model  string
	logger *logging.Logger
}

func NewGeminiDetector(client *genai.Client, model string, logger *logging.Logger) *GeminiDetector {
	if client == nil {
		panic("detect: gemini client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GeminiDetector{client: client, model: model, logger: logger}
}

func (d *GeminiDetector) Detect(ctx context.Context, pages []document.Page, defs []phi.CategoryDefinition) ([]document.Finding, error) {
	model := d.client.GenerativeModel(d.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(buildSystemPrompt(defs))},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(buildUserPrompt(pages)))
	if err != nil {
		return nil, fmt.Errorf("detect: gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("detect: gemini response had no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, errors.New("detect: gemini response contained no text")
	}

	findings, err := parseFindings(b.String(), pages)
	if err != nil {
		return nil, err
	}
	d.logger.Info("classifier response parsed", "provider", "gemini", "findings", len(findings))
	return findings, nil
}
