// Package vision optionally enriches object and emotion analyses with
// structured hints from an external image classifier. Every failure path
// is a no-op: enrichment must never break the pipeline.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	xdraw "golang.org/x/image/draw"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
	"github.com/reelsmith/reelsmith/internal/media"
)

// Hints is the structured response expected from the classifier.
type Hints struct {
	Scene      string   `json:"scene"`
	Subjects   []string `json:"subjects"`
	Actions    []string `json:"actions"`
	Emotion    string   `json:"emotion"`
	Confidence float64  `json:"confidence"`
}

// thumbnail bounds sent to the classifier.
const (
	thumbWidth  = 256
	thumbHeight = 144
)

const systemPrompt = `You are a wedding videography assistant. You receive a single frame from a wedding clip. Respond with JSON only: {"scene": one of ceremony|reception|party|preparation, "subjects": [strings], "actions": [strings], "emotion": one of joy|surprise|love|excitement|tenderness|celebration, "confidence": 0..1}.`

// chatClient is the slice of the OpenAI client the enricher needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Enricher sends clip thumbnails to the external classifier and merges the
// returned hints into prior analyses.
type Enricher struct {
	client    chatClient
	model     string
	extractor *media.FrameExtractor
	logger    *slog.Logger
}

// NewEnricher creates a vision enricher. A nil return means enrichment is
// disabled; callers treat nil as "skip".
func NewEnricher(apiKey, model string, extractor *media.FrameExtractor, logger *slog.Logger) *Enricher {
	if apiKey == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		client:    openai.NewClient(apiKey),
		model:     model,
		extractor: extractor,
		logger:    logger.With("component", "vision-enricher"),
	}
}

// Enrich classifies the clip's first frame and folds the hints into obj
// and emo in place. It never returns an error and never panics the
// pipeline; on any failure the analyses are left untouched.
func (e *Enricher) Enrich(ctx context.Context, path string, obj *object.Analysis, emo *emotion.Analysis) {
	if e == nil {
		return
	}

	hints, err := e.classify(ctx, path)
	if err != nil {
		e.logger.Debug("vision enrichment skipped", "path", path, "error", err)
		return
	}
	ApplyHints(hints, obj, emo)
	e.logger.Debug("vision hints applied",
		"path", path,
		"scene", hints.Scene,
		"emotion", hints.Emotion,
		"confidence", hints.Confidence)
}

func (e *Enricher) classify(ctx context.Context, path string) (*Hints, error) {
	frame, err := e.extractor.FirstFrameJPEG(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extracting thumbnail: %w", err)
	}
	thumb, err := downscaleJPEG(frame)
	if err != nil {
		return nil, fmt.Errorf("downscaling thumbnail: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Classify this wedding clip frame.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(thumb),
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classifier returned no choices")
	}

	var hints Hints
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &hints); err != nil {
		return nil, fmt.Errorf("parsing classifier response: %w", err)
	}
	return &hints, nil
}

// downscaleJPEG re-encodes the thumbnail at classifier-friendly bounds.
func downscaleJPEG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, thumbWidth, thumbHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
