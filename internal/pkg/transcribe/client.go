package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/qs3c/coach_go_server/config"
)

// TranscriptionError 转写服务返回非 2xx
type TranscriptionError struct {
	StatusCode int
	Body       string
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription service returned %d: %s", e.StatusCode, e.Body)
}

// Client 语音转写服务客户端
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(cfg *config.TranscriptionConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe 以 multipart 上传音频并返回转写文本
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("transcription endpoint not configured")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreatePart(fileHeader(mimeType))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if c.model != "" {
		if err := w.WriteField("model", c.model); err != nil {
			return "", fmt.Errorf("failed to write model field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read transcription response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TranscriptionError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	text, _, err := Decode(body)
	if err != nil {
		return "", err
	}
	return text, nil
}

func fileHeader(mimeType string) textproto.MIMEHeader {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="recording.webm"`},
		"Content-Type":        {mimeType},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
