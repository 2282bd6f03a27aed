package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/factura-ai/invoice-extractor/internal/llm"
)

// ExtractFromImage implements the vision path of llm.ModelClient: one
// chat/completions round trip carrying the extraction prompt plus the image
// as a base64 data URL, output capped at cfg.MaxOutputTokens.
func (c *Client) ExtractFromImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.vision.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"mime_type", mimeType,
		"image_bytes", len(image),
	)

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxOutputTokens,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": llm.BuildVisionPrompt()},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}

	raw, err := c.postJSON(ctx, c.endpoint("/chat/completions"), body)
	if err != nil {
		c.log.Error("llm.vision.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("llm.vision.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *Client) postJSON(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, "application/json", func() io.Reader {
		return bytes.NewReader(b)
	})
}

// do performs one HTTP call with bounded retries on transport failure. HTTP
// error statuses are not retried; the caller surfaces them.
func (c *Client) do(ctx context.Context, method, url, contentType string, newBody func() io.Reader) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
			c.log.Warn("openai.retry", "attempt", attempt, "url", url, "error", lastErr)
		}

		var body io.Reader
		if newBody != nil {
			body = newBody()
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("OpenAI-Beta", "assistants=v2")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("openai http error: %w", err)
			continue
		}

		buf := new(bytes.Buffer)
		_, readErr := buf.ReadFrom(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("openai response body close error", "error", cerr)
		}
		if readErr != nil {
			lastErr = fmt.Errorf("openai read body: %w", readErr)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
		}
		return buf.Bytes(), nil
	}
	return nil, lastErr
}
