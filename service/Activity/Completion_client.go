package Activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// CompletionClient 活动决策使用的一次性补全接口
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

type openaiCompletionClient struct {
	client *openai.Client
	model  string
}

func NewOpenAICompletionClient(apiKey, baseURL, model string) CompletionClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &openaiCompletionClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Complete 单轮补全，返回模型原始文本
func (c *openaiCompletionClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("调用补全服务失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("补全服务未返回内容")
	}
	return resp.Choices[0].Message.Content, nil
}
