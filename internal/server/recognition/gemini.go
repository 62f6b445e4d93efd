package recognition

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

type generateFunc func(ctx context.Context, model string, req *generativelanguage.GenerateContentRequest) (*generativelanguage.GenerateContentResponse, error)

// GeminiRecognizer calls the Generative Language API generateContent
// method with the prompt and the inline image. The call is bounded by the
// deadline of ctx.
type GeminiRecognizer struct {
	generate generateFunc
	model    string
	logger   logging.Logger
}

func NewGeminiRecognizer(ctx context.Context, apiKey, model string, logger logging.Logger) (*GeminiRecognizer, error) {
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("generative language client: %w", err)
	}

	generate := func(ctx context.Context, model string, req *generativelanguage.GenerateContentRequest) (*generativelanguage.GenerateContentResponse, error) {
		return svc.Models.GenerateContent(model, req).Context(ctx).Do()
	}

	return newGeminiRecognizer(generate, model, logger), nil
}

func newGeminiRecognizer(generate generateFunc, model string, logger logging.Logger) *GeminiRecognizer {
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return &GeminiRecognizer{generate: generate, model: model, logger: logger}
}

func (g *GeminiRecognizer) Recognize(ctx context.Context, upload models.Upload) (*models.RecognizedReceipt, error) {
	mimeType := upload.ContentType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role: "user",
			Parts: []*generativelanguage.Part{
				{Text: prompt},
				{InlineData: &generativelanguage.Blob{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(upload.Data),
				}},
			},
		}},
		GenerationConfig: &generativelanguage.GenerationConfig{
			ResponseMimeType: "application/json",
		},
	}

	started := time.Now()
	resp, err := g.generate(ctx, g.model, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out: %w", common.ErrRecognition, err)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrRecognition, err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: empty model response", common.ErrRecognition)
	}

	rr, err := ParseResponse(text)
	if err != nil {
		g.logger.Warn(ctx, "unusable recognition response", "model", g.model, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrRecognition, err)
	}

	g.logger.Debug(ctx, "receipt recognized", "model", g.model, "items", len(rr.Items), "took", time.Since(started))
	return rr, nil
}

func responseText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0].Content
	if c == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
