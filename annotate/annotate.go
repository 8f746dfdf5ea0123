/*
annotate.go - Narrative commentary for rendered charts

PURPOSE:
  Sends a chart image and its data table to a text-and-vision model and
  returns the commentary verbatim. The text is never parsed.

FAILURE:
  Every failure (transport, non-success status, empty response) comes back
  as *fund.AnnotatorError. There is no retry. Callers show the error text in
  place of the narrative and keep the chart.

USAGE:
  a := annotate.New(cfg)           // Disabled when cfg.APIKey is empty
  text, err := a.Annotate(ctx, annotate.Request{Title: t, ChartPNG: png, Table: txt})
*/
package annotate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/warp/fund-returns/fund"
)

// ErrDisabled is wrapped by the Disabled annotator's error.
var ErrDisabled = errors.New("annotator is not configured")

// Request is one chart to describe.
type Request struct {
	Title    string
	ChartPNG []byte
	Table    string // optional plain-text data table
}

// Annotator produces commentary for a chart.
type Annotator interface {
	Annotate(ctx context.Context, req Request) (string, error)
}

// Config is the annotator section of the application config.
type Config struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Password    string        `mapstructure:"password"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Language    string        `mapstructure:"language"`
}

const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.3
	DefaultLanguage    = "ko"
)

// New returns an OpenAI annotator, or Disabled when no API key is set.
func New(cfg Config) Annotator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Disabled{}
	}
	return NewOpenAI(cfg)
}

// =============================================================================
// DISABLED
// =============================================================================

// Disabled fails every call. Used when no API key is configured.
type Disabled struct{}

func (Disabled) Annotate(context.Context, Request) (string, error) {
	return "", &fund.AnnotatorError{Err: ErrDisabled}
}

// =============================================================================
// OPENAI
// =============================================================================

// OpenAI calls a chat completion model with the chart attached as an image.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	language    string
}

// NewOpenAI builds a client. A zero Timeout keeps the HTTP client default.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	a := &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		language:    cfg.Language,
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	if a.language == "" {
		a.language = DefaultLanguage
	}
	return a
}

// Annotate sends one chat completion request and returns the first choice.
func (a *OpenAI) Annotate(ctx context.Context, req Request) (string, error) {
	if len(req.ChartPNG) == 0 {
		return "", &fund.AnnotatorError{Err: errors.New("no chart image to describe")}
	}
	prompt := buildPrompt(a.language, req)
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ChartPNG)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(a.language)},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    image,
					Detail: openai.ImageURLDetailAuto,
				}},
			}},
		},
	})
	if err != nil {
		return "", &fund.AnnotatorError{Status: statusOf(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &fund.AnnotatorError{Err: errors.New("response has no choices")}
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &fund.AnnotatorError{Err: errors.New("response is empty")}
	}
	return text, nil
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// =============================================================================
// PROMPTS
// =============================================================================

func systemPrompt(language string) string {
	if language == "ko" {
		return "당신은 펀드 수익률 데이터를 해석하는 금융 분석가입니다. " +
			"차트와 표에 나타난 사실만 근거로 간결하게 설명하고, 투자 권유는 하지 마세요."
	}
	return "You are a financial analyst interpreting fund return data. " +
		"Describe only what the chart and table show, concisely, and give no investment advice."
}

func buildPrompt(language string, req Request) string {
	var b strings.Builder
	if language == "ko" {
		fmt.Fprintf(&b, "다음은 '%s' 차트입니다. 주요 추세, 두드러진 값, 이상치를 3~5개 문단으로 요약해 주세요.\n", req.Title)
		if req.Table != "" {
			b.WriteString("\n차트의 기반 데이터:\n")
		}
	} else {
		fmt.Fprintf(&b, "This is the chart '%s'. Summarize the main trends, notable values and outliers in 3-5 paragraphs.\n", req.Title)
		if req.Table != "" {
			b.WriteString("\nUnderlying data:\n")
		}
	}
	if req.Table != "" {
		b.WriteString("```\n")
		b.WriteString(req.Table)
		b.WriteString("```\n")
	}
	return b.String()
}
