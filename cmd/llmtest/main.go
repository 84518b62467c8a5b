package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/openphi/deidentify/cmd/mainconfig"
	appconfig "github.com/openphi/deidentify/internal/config"
	"github.com/openphi/deidentify/internal/detect"
	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/pkg/logging"
)

// Sends a synthetic page through the configured classifier and prints the
// findings. Useful for verifying provider credentials and prompt behavior
// before pointing real documents at the service.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var detector detect.Detector
	switch cfg.ClassifierProvider {
	case appconfig.ProviderBedrock:
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			log.Fatalf("load AWS config: %v", err)
		}
		detector = detect.NewBedrockDetector(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, logger)
	case appconfig.ProviderOpenAI:
		detector = detect.NewOpenAIDetector(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	case appconfig.ProviderGemini:
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			log.Fatalf("create Gemini client: %v", err)
		}
		defer func() { _ = client.Close() }()
		detector = detect.NewGeminiDetector(client, cfg.GeminiModel, logger)
	}

	pages := []document.Page{
		{
			Index:  0,
			Width:  612,
			Height: 792,
			Spans: []document.TextSpan{
				{Text: "Patient: Jane Doe", BBox: document.BoundingBox{X0: 72, Y0: 72, X1: 300, Y1: 86}},
				{Text: "DOB: 03/14/1962", BBox: document.BoundingBox{X0: 72, Y0: 90, X1: 250, Y1: 104}},
				{Text: "MRN: 00482913", BBox: document.BoundingBox{X0: 72, Y0: 108, X1: 250, Y1: 122}},
				{Text: "Contact: (555) 867-5309, jane.doe@example.com", BBox: document.BoundingBox{X0: 72, Y0: 126, X1: 450, Y1: 140}},
			},
		},
	}

	fmt.Printf("Classifier check: provider=%s\n\n", cfg.ClassifierProvider)

	start := time.Now()
	findings, err := detector.Detect(ctx, pages, phi.Definitions())
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("classifier error after %v: %v\n", elapsed.Round(time.Millisecond), err)
		os.Exit(1)
	}

	fmt.Printf("%d findings in %v:\n", len(findings), elapsed.Round(time.Millisecond))
	for _, f := range findings {
		fmt.Printf("  [%s] %q confidence=%d page=%d\n", f.Category, f.Text, f.Confidence, f.PageHint+1)
	}
	if len(findings) == 0 {
		fmt.Println("  (none; the classifier should have found a name, date, MRN, phone, and email)")
	}
}
