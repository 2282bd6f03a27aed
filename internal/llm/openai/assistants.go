package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/llm"
)

// run statuses that mean the run is still making progress.
var nonTerminalRunStatus = map[string]struct{}{
	"queued":      {},
	"in_progress": {},
	"cancelling":  {},
}

// ExtractFromDocument implements the document path of llm.ModelClient:
// upload the file, create a file_search assistant and a thread referencing
// the upload, start a run, poll it to a terminal state and read back the
// assistant's reply. The uploaded file and the assistant are released on
// every exit path so no state is left behind in the model service, even on
// partial failure.
func (c *Client) ExtractFromDocument(ctx context.Context, file []byte, filename string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.document.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"filename", filename,
		"file_bytes", len(file),
	)

	fileID, err := c.uploadFile(ctx, file, filename)
	if err != nil {
		return "", common.WrapError(err, "upload file")
	}
	defer c.cleanup(rid, "file", "/files/"+fileID)

	assistantID, err := c.createAssistant(ctx)
	if err != nil {
		return "", common.WrapError(err, "create assistant")
	}
	defer c.cleanup(rid, "assistant", "/assistants/"+assistantID)

	threadID, err := c.createThread(ctx, fileID)
	if err != nil {
		return "", common.WrapError(err, "create thread")
	}

	status, err := c.runAndPoll(ctx, threadID, assistantID)
	if err != nil {
		return "", err
	}
	if status != "completed" {
		c.log.Error("llm.document.incomplete",
			"req_id", rid, "status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewExtractionIncomplete(status)
	}

	reply, err := c.assistantReply(ctx, threadID)
	if err != nil {
		return "", err
	}

	c.log.Info("llm.document.ok",
		"req_id", rid,
		"content_len", len(reply),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

func (c *Client) uploadFile(ctx context.Context, file []byte, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(file); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	payload := buf.Bytes()
	raw, err := c.do(ctx, http.MethodPost, c.endpoint("/files"), mw.FormDataContentType(), func() io.Reader {
		return bytes.NewReader(payload)
	})
	if err != nil {
		return "", err
	}
	return decodeID(raw)
}

func (c *Client) createAssistant(ctx context.Context) (string, error) {
	raw, err := c.postJSON(ctx, c.endpoint("/assistants"), map[string]any{
		"name":         "Invoice Extractor",
		"instructions": llm.BuildAssistantInstructions(),
		"model":        c.cfg.Model,
		"tools":        []map[string]any{{"type": "file_search"}},
	})
	if err != nil {
		return "", err
	}
	return decodeID(raw)
}

func (c *Client) createThread(ctx context.Context, fileID string) (string, error) {
	raw, err := c.postJSON(ctx, c.endpoint("/threads"), map[string]any{
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": llm.BuildAssistantUserMessage(),
				"attachments": []map[string]any{
					{
						"file_id": fileID,
						"tools":   []map[string]any{{"type": "file_search"}},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return decodeID(raw)
}

// runAndPoll starts a run and polls until a terminal state, bounded by the
// configured wall-clock poll timeout.
func (c *Client) runAndPoll(ctx context.Context, threadID, assistantID string) (string, error) {
	raw, err := c.postJSON(ctx, c.endpoint("/threads/"+threadID+"/runs"), map[string]any{
		"assistant_id": assistantID,
	})
	if err != nil {
		return "", common.WrapError(err, "create run")
	}
	runID, err := decodeID(raw)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.cfg.PollTimeout)
	for {
		raw, err := c.do(ctx, http.MethodGet, c.endpoint("/threads/"+threadID+"/runs/"+runID), "", nil)
		if err != nil {
			return "", common.WrapError(err, "poll run")
		}
		var run struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &run); err != nil {
			return "", fmt.Errorf("decode run: %w", err)
		}
		if _, running := nonTerminalRunStatus[run.Status]; !running {
			return run.Status, nil
		}
		if time.Now().After(deadline) {
			return "", common.NewExtractionIncomplete("poll timeout")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) assistantReply(ctx context.Context, threadID string) (string, error) {
	raw, err := c.do(ctx, http.MethodGet, c.endpoint("/threads/"+threadID+"/messages"), "", nil)
	if err != nil {
		return "", common.WrapError(err, "list messages")
	}
	var list struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", fmt.Errorf("decode messages: %w", err)
	}
	for _, m := range list.Data {
		if m.Role != "assistant" {
			continue
		}
		for _, part := range m.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return strings.TrimSpace(part.Text.Value), nil
			}
		}
	}
	return "", fmt.Errorf("no assistant reply in thread")
}

// cleanup deletes a remote resource with a fresh context so it still runs
// when the request context is already cancelled.
func (c *Client) cleanup(rid, kind, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	if _, err := c.do(ctx, http.MethodDelete, c.endpoint(path), "", nil); err != nil {
		c.log.Warn("llm.document.cleanup_failed", "req_id", rid, "kind", kind, "error", err)
	}
}

func decodeID(raw []byte) (string, error) {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("decode id: %w", err)
	}
	if obj.ID == "" {
		return "", fmt.Errorf("missing id in response")
	}
	return obj.ID, nil
}
