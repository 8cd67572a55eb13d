package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/coach_go_server/config"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(baseURL, key string) *Client {
	return NewClient(&config.LLMConfig{
		BaseURL:        baseURL,
		APIKey:         key,
		Model:          "gpt-4o-mini",
		Temperature:    0.7,
		MaxTokens:      500,
		TimeoutSeconds: 5,
	})
}

func completionServer(t *testing.T, status int, body string, captured *capturedRequest, auth *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

const okBody = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini-2024","choices":[{"index":0,"message":{"role":"assistant","content":"You both listened well."},"finish_reason":"stop"}]}`

func TestClient_Analyze(t *testing.T) {
	var got capturedRequest
	var auth string
	srv := completionServer(t, http.StatusOK, okBody, &got, &auth)
	defer srv.Close()

	res, err := newTestClient(srv.URL, "server-key").Analyze(context.Background(), "user-key", "A: hi\nB: hello")
	require.NoError(t, err)

	assert.Equal(t, "You both listened well.", res.Text)
	assert.Equal(t, "gpt-4o-mini-2024", res.Model)
	assert.Equal(t, "Bearer user-key", auth)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 0.001)
	assert.Equal(t, 500, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "A: hi\nB: hello", got.Messages[1].Content)
}

func TestClient_Analyze_FallsBackToServerKey(t *testing.T) {
	var auth string
	srv := completionServer(t, http.StatusOK, okBody, nil, &auth)
	defer srv.Close()

	_, err := newTestClient(srv.URL, "server-key").Analyze(context.Background(), "", "A: hi")
	require.NoError(t, err)
	assert.Equal(t, "Bearer server-key", auth)
}

func TestClient_Analyze_MissingKey(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", "").Analyze(context.Background(), "", "A: hi")
	assert.Equal(t, KindMissingAPIKey, KindOf(err))
}

func TestClient_Analyze_AuthError(t *testing.T) {
	srv := completionServer(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`, nil, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").Analyze(context.Background(), "", "A: hi")
	var ae *AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindAuth, ae.Kind)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
}

func TestClient_Analyze_UpstreamError(t *testing.T) {
	srv := completionServer(t, http.StatusBadGateway, `{"error":{"message":"gateway down","type":"server_error"}}`, nil, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").Analyze(context.Background(), "", "A: hi")
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestClient_Analyze_EmptyChoices(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").Analyze(context.Background(), "", "A: hi")
	assert.Equal(t, KindEmpty, KindOf(err))
}

func TestClient_Analyze_NetworkError(t *testing.T) {
	srv := completionServer(t, http.StatusOK, okBody, nil, nil)
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, "k").Analyze(context.Background(), "", "A: hi")
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
