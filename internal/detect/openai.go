package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/pkg/logging"
)

// OpenAIDetector classifies PHI via any OpenAI-compatible chat completions
// endpoint (OpenAI, Azure OpenAI, local gateways). Transient HTTP failures
// retry inside the client.
type OpenAIDetector struct {
	client  *retryablehttp.Client
	baseURL string
	apiKey  string
	model   string
	logger  *logging.Logger
}

func NewOpenAIDetector(baseURL, apiKey, model string, logger *logging.Logger) *OpenAIDetector {
	if logger == nil {
		logger = logging.Default()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 2 * time.Second
	client.RetryWaitMax = 30 * time.Second
	client.HTTPClient.Timeout = 120 * time.Second
	client.Logger = nil

	return &OpenAIDetector{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		logger:  logger,
	}
}

func (d *OpenAIDetector) Detect(ctx context.Context, pages []document.Page, defs []phi.CategoryDefinition) ([]document.Finding, error) {
	payload, err := json.Marshal(map[string]any{
		"model": d.model,
		"messages": []map[string]string{
			{"role": "system", "content": buildSystemPrompt(defs)},
			{"role": "user", "content": buildUserPrompt(pages)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0,
	})
	if err != nil {
		return nil, fmt.Errorf("detect: marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", d.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("detect: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect: classifier request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("detect: read classifier response: %w", err)
	}

	if resp.StatusCode != 200 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = string(body)
		}
		return nil, fmt.Errorf("detect: classifier returned %d: %s", resp.StatusCode, msg)
	}

	content := gjson.GetBytes(body, "choices.0.message.content").String()
	if content == "" {
		return nil, fmt.Errorf("detect: classifier response had no content")
	}

	findings, err := parseFindings(content, pages)
	if err != nil {
		return nil, err
	}
	d.logger.Info("classifier response parsed", "provider", "openai", "findings", len(findings))
	return findings, nil
}
