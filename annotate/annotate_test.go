package annotate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-returns/annotate"
	"github.com/warp/fund-returns/fund"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type chatRequest struct {
	Model     string  `json:"model"`
	MaxTokens int     `json:"max_tokens"`
	Temp      float32 `json:"temperature"`
	Messages  []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

func newTestServer(t *testing.T, handler http.HandlerFunc) annotate.Config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return annotate.Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "vision-test", MaxTokens: 256, Temperature: 0.3}
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "vision-test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

var chart = []byte("\x89PNG\r\n\x1a\nfake")

// =============================================================================
// OPENAI
// =============================================================================

func TestOpenAI_SendsImageAndTable(t *testing.T) {
	// GIVEN: A service that records the request
	var got chatRequest
	var auth, path string
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("1년 수익률은 대체로 양수입니다.")))
	})

	// WHEN: Annotating a chart with a table
	text, err := annotate.NewOpenAI(cfg).Annotate(context.Background(), annotate.Request{
		Title:    "1년 수익률 분포",
		ChartPNG: chart,
		Table:    "운용사  1Y\nA       1.50\n",
	})

	// THEN: The response text is returned verbatim and the request carries
	// the model, the limits, the table and the PNG as a data URL
	require.NoError(t, err)
	assert.Equal(t, "1년 수익률은 대체로 양수입니다.", text)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "vision-test", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)

	var parts []contentPart
	require.NoError(t, json.Unmarshal(got.Messages[1].Content, &parts))
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "1년 수익률 분포")
	assert.Contains(t, parts[0].Text, "A       1.50")
	require.NotNil(t, parts[1].ImageURL)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	})

	_, err := annotate.NewOpenAI(cfg).Annotate(context.Background(), annotate.Request{Title: "t", ChartPNG: chart})

	var aerr *fund.AnnotatorError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusTooManyRequests, aerr.Status)
	assert.ErrorIs(t, err, fund.ErrAnnotatorFailed)
}

func TestOpenAI_NoChoices(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})

	_, err := annotate.NewOpenAI(cfg).Annotate(context.Background(), annotate.Request{Title: "t", ChartPNG: chart})
	assert.ErrorIs(t, err, fund.ErrAnnotatorFailed)
}

func TestOpenAI_Timeout(t *testing.T) {
	// GIVEN: A service slower than the configured timeout
	release := make(chan struct{})
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	cfg.Timeout = 50 * time.Millisecond

	// WHEN: Annotating
	_, err := annotate.NewOpenAI(cfg).Annotate(context.Background(), annotate.Request{Title: "t", ChartPNG: chart})

	// THEN: A transport failure with no status
	var aerr *fund.AnnotatorError
	require.ErrorAs(t, err, &aerr)
	assert.Zero(t, aerr.Status)
}

func TestOpenAI_RequiresImage(t *testing.T) {
	a := annotate.NewOpenAI(annotate.Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	_, err := a.Annotate(context.Background(), annotate.Request{Title: "t"})
	assert.ErrorIs(t, err, fund.ErrAnnotatorFailed)
}

// =============================================================================
// DISABLED
// =============================================================================

func TestNew_WithoutKeyIsDisabled(t *testing.T) {
	a := annotate.New(annotate.Config{})
	require.IsType(t, annotate.Disabled{}, a)

	_, err := a.Annotate(context.Background(), annotate.Request{ChartPNG: chart})
	assert.ErrorIs(t, err, fund.ErrAnnotatorFailed)
	assert.ErrorIs(t, err, annotate.ErrDisabled)
}

func TestNew_WithKeyIsOpenAI(t *testing.T) {
	a := annotate.New(annotate.Config{APIKey: "k"})
	assert.IsType(t, &annotate.OpenAI{}, a)
}
