package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/pkg/logging"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockDetector classifies PHI via a Bedrock Converse model.
type BedrockDetector struct {
	api     bedrockConverseAPI
	modelID string
	logger  *logging.Logger
}

func NewBedrockDetector(api bedrockConverseAPI, modelID string, logger *logging.Logger) *BedrockDetector {
	if api == nil {
		panic("detect: bedrock converse client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BedrockDetector{api: api, modelID: modelID, logger: logger}
}

func (d *BedrockDetector) Detect(ctx context.Context, pages []document.Page, defs []phi.CategoryDefinition) ([]document.Finding, error) {
	if strings.TrimSpace(d.modelID) == "" {
		return nil, errors.New("detect: bedrock model id is required")
	}

	out, err := d.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(d.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: buildSystemPrompt(defs)},
		},
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: buildUserPrompt(pages)},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(4096),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("detect: bedrock converse: %w", err)
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return nil, err
	}

	findings, err := parseFindings(text, pages)
	if err != nil {
		return nil, err
	}
	d.logger.Info("classifier response parsed", "provider", "bedrock", "findings", len(findings))
	return findings, nil
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("detect: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("detect: bedrock response did not include a message output")
	}

	var b strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("detect: bedrock response contained no text content blocks")
	}
	return b.String(), nil
}
