package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries int) *Client {
	return New(Config{
		BaseURL:         url,
		APIKey:          "test-key",
		Model:           "test-model",
		TranscribeModel: "whisper-1",
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		BaseBackoff:     time.Millisecond,
	})
}

func chatReply(content string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return body
}

func TestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 2)

		w.Write(chatReply(`Here you go: {"overall_band": 6.5, "criteria": {"Lexical Resource": 7}, "feedback": "Good range"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	got, err := c.Score(context.Background(), ScoreRequest{Task: "writing", Prompt: "Discuss", Response: "Essay"})
	require.NoError(t, err)
	assert.Equal(t, 6.5, got.OverallBand)
	assert.Equal(t, 7.0, got.Criteria["Lexical Resource"])
	assert.Equal(t, "Good range", got.Feedback)
}

func TestScoreRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"message": "overloaded"}}`))
			return
		}
		w.Write(chatReply(`{"overall_band": 5, "criteria": {}, "feedback": ""}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	got, err := c.Score(context.Background(), ScoreRequest{Task: "writing"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.OverallBand)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestScoreGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	_, err := c.Score(context.Background(), ScoreRequest{Task: "writing"})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestScoreDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "bad model"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	_, err := c.Score(context.Background(), ScoreRequest{Task: "writing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(fmt.Errorf("failed to score answer: %w", err)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScoreHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 5, BaseBackoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Score(ctx, ScoreRequest{Task: "writing"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDisabledClient(t *testing.T) {
	c := New(Config{})
	assert.False(t, c.Enabled())

	_, err := c.Score(context.Background(), ScoreRequest{})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = c.Transcribe(context.Background(), "missing.webm")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "answer.webm", header.Filename)

		w.Write([]byte(`{"text": "I live in a small town"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "answer.webm")
	require.NoError(t, os.WriteFile(path, []byte("fake audio"), 0o644))

	c := newTestClient(srv.URL, 0)
	text, err := c.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "I live in a small town", text)
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
		wantErr bool
	}{
		{"plain", `{"overall_band": 7}`, 7, false},
		{"fenced", "```json\n{\"overall_band\": 6.5}\n```", 6.5, false},
		{"no json", "I cannot score this", 0, true},
		{"broken", `{"overall_band": }`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssessment(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAssessment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.OverallBand != tt.want {
				t.Errorf("parseAssessment() band = %v, want %v", got.OverallBand, tt.want)
			}
		})
	}
}
