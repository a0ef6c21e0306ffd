// Package oracle talks to the vision-language model that answers grounding
// and quality questions about page images. The model is a black box behind
// an OpenAI-compatible chat endpoint; this package only manages transport,
// image encoding and reply decoding.
package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/ekuzmin/pdffig/internal/config"
)

// Oracle issues one request per call and returns the raw reply text.
// Implementations must not retry; the caller decides what a failure means.
// The image is transmitted exactly as given: replies in pixel coordinates
// refer to its bounds, so the caller owns sizing the raster.
type Oracle interface {
	Ask(ctx context.Context, img image.Image, instructions string, temperature float64) (string, error)
}

// VisionClient is the production Oracle backed by an OpenAI-compatible
// vision model (DashScope/Qwen by default).
type VisionClient struct {
	model     llms.Model
	maxTokens int
	log       *logrus.Logger
}

// NewVisionClient builds a client from explicit configuration. Nothing is
// read from the environment here.
func NewVisionClient(cfg config.OracleConfig, log *logrus.Logger) (*VisionClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("oracle API key is not set")
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision model client: %w", err)
	}

	return &VisionClient{
		model:     model,
		maxTokens: cfg.MaxTokens,
		log:       log,
	}, nil
}

// Ask sends one image plus instruction text and returns the reply content.
func (c *VisionClient) Ask(ctx context.Context, img image.Image, instructions string, temperature float64) (string, error) {
	dataURL, err := c.encodeImage(img)
	if err != nil {
		return "", err
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.ImageURLPart(dataURL),
				llms.TextPart(instructions),
			},
		},
	}

	resp, err := c.model.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("oracle returned no choices")
	}

	reply := resp.Choices[0].Content
	c.log.WithField("replyLength", len(reply)).Debug("Oracle reply received")
	return reply, nil
}

func (c *VisionClient) encodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding page image: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
