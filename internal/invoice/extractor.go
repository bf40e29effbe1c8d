package invoice

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Extractor sends an invoice image to the vision model and reconciles the
// reply into a validated InvoiceData record.
type Extractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	reconciler  *Reconciler
	logger      *zap.Logger
}

// NewExtractor creates a new invoice extractor.
func NewExtractor(apiKey, model string, maxTokens int, temperature float32, logger *zap.Logger) *Extractor {
	return &Extractor{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		reconciler:  NewReconciler(logger),
		logger:      logger,
	}
}

// ExtractFromImage extracts invoice data from a JPEG-encoded invoice page.
// The raw reply is returned alongside the record so callers can persist it.
func (e *Extractor) ExtractFromImage(ctx context.Context, jpegData []byte) (*InvoiceData, string, error) {
	e.logger.Info("Extracting invoice data with vision model",
		zap.String("model", e.model),
		zap.Int("image_bytes", len(jpegData)))

	base64Img := base64.StdEncoding.EncodeToString(jpegData)
	contentParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: extractionPrompt,
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:image/jpeg;base64,%s", base64Img),
			},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, "", fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("no response from vision API")
	}

	content := resp.Choices[0].Message.Content
	e.logger.Debug("Vision API response received", zap.Int("content_length", len(content)))

	data, err := e.reconciler.Reconcile(content)
	if err != nil {
		e.logger.Error("Failed to reconcile model reply",
			zap.Error(err),
			zap.String("content", content))
		return nil, content, err
	}

	e.logger.Info("Invoice data extracted successfully",
		zap.Stringp("invoice_number", data.InvoiceMetadata.InvoiceNumber),
		zap.Float64p("grand_total", data.Totals.GrandTotal),
		zap.Int("line_items", len(data.LineItems)))

	return data, content, nil
}
