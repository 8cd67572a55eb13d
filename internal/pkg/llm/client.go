package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/qs3c/coach_go_server/config"
)

// DefaultSystemPrompt 未配置时使用的系统提示词
const DefaultSystemPrompt = `You are a warm, practical relationship communication coach.
You will receive the transcript of a conversation between partners, one line per turn in the form "Speaker: text".
Analyze how they communicate. Cover: the emotional tone, moments of empathy or validation, patterns that escalate conflict,
how well each person listens, and two or three concrete, kind suggestions they can try next time.
Keep the response under 300 words and address both partners respectfully.`

// Result 分析结果
type Result struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// Client 通过 OpenAI 兼容网关进行对话分析
type Client struct {
	baseURL      string
	defaultKey   string
	model        string
	systemPrompt string
	temperature  float32
	maxTokens    int
	httpClient   *http.Client
}

func NewClient(cfg *config.LLMConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	prompt := cfg.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		defaultKey:   cfg.APIKey,
		model:        cfg.Model,
		systemPrompt: prompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Analyze 发送固定的两条消息（系统提示 + 转写文本）；apiKey 为空时使用服务端默认密钥
func (c *Client) Analyze(ctx context.Context, apiKey, transcriptText string) (*Result, error) {
	if apiKey == "" {
		apiKey = c.defaultKey
	}
	if apiKey == "" {
		return nil, &AnalysisError{Kind: KindMissingAPIKey, Err: errors.New("no api key configured")}
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcriptText},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &AnalysisError{Kind: KindEmpty, Err: errors.New("no completion returned")}
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &Result{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
	}, nil
}

// Model 配置的模型名
func (c *Client) Model() string {
	return c.model
}
