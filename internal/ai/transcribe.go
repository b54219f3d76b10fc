package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads an audio file and returns its transcript
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model", c.cfg.TranscribeModel); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	payload := body.Bytes()
	contentType := writer.FormDataContentType()

	var response transcriptionResponse
	err = c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, &response)
	if err != nil {
		return "", err
	}

	return response.Text, nil
}
