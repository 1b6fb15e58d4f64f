package Chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"github.com/wasdq1234/alter-ego/database"
	"gorm.io/gorm"
)

// StreamCompleter 流式补全接口。onChunk 返回错误时中断流
type StreamCompleter interface {
	StreamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, onChunk func(string) error) (string, error)
}

type openaiStreamer struct {
	client *openai.Client
	model  string
}

func NewOpenAIStreamer(apiKey, baseURL, model string) StreamCompleter {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &openaiStreamer{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// StreamCompletion 流式调用，逐块回调并返回完整回复
func (o *openaiStreamer) StreamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, onChunk func(string) error) (string, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("创建流式会话失败: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("接收流式响应失败: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		chunk := response.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

// ChatStreamService 聊天流服务。每个会话维护一份内存对话历史，
// 系统提示词只在会话的第一轮注入一次
type ChatStreamService struct {
	db       *gorm.DB
	streamer StreamCompleter

	mu        sync.Mutex
	histories map[uint][]openai.ChatCompletionMessage
}

// GlobalChatStreamService 全局ChatStreamService实例
var GlobalChatStreamService *ChatStreamService

func NewChatStreamService(db *gorm.DB, streamer StreamCompleter) (*ChatStreamService, error) {
	if streamer == nil {
		return nil, errors.New("流式补全客户端不能为空")
	}

	service := &ChatStreamService{
		db:        db,
		streamer:  streamer,
		histories: make(map[uint][]openai.ChatCompletionMessage),
	}
	GlobalChatStreamService = service
	return service, nil
}

// StreamChat 发送一轮消息并流式返回回复。
// 流中途失败时本轮不写入历史，下次重试从上一轮末尾继续
func (s *ChatStreamService) StreamChat(ctx context.Context, threadID uint, systemPrompt, userMessage string, onChunk func(string) error) (string, error) {
	history := s.loadHistory(threadID, systemPrompt, userMessage)
	messages := append(append([]openai.ChatCompletionMessage{}, history...), openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	reply, err := s.streamer.StreamCompletion(ctx, messages, onChunk)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.histories[threadID] = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	s.mu.Unlock()

	return reply, nil
}

// loadHistory 取会话历史。内存没有时从数据库重建，
// 并在最前面注入一次系统提示词。本轮用户消息在调用前已落库，
// 重建时要把末尾这条去掉，避免重复进入本轮请求
func (s *ChatStreamService) loadHistory(threadID uint, systemPrompt, currentUserMessage string) []openai.ChatCompletionMessage {
	s.mu.Lock()
	if history, ok := s.histories[threadID]; ok {
		s.mu.Unlock()
		return history
	}
	s.mu.Unlock()

	history := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if s.db != nil {
		var messages []database.ChatMessage
		if err := s.db.Where("thread_id = ?", threadID).
			Order("created_at ASC").
			Find(&messages).Error; err == nil {
			if n := len(messages); n > 0 && messages[n-1].Role == openai.ChatMessageRoleUser &&
				messages[n-1].Content == currentUserMessage {
				messages = messages[:n-1]
			}
			for _, m := range messages {
				history = append(history, openai.ChatCompletionMessage{
					Role:    m.Role,
					Content: m.Content,
				})
			}
		}
	}

	s.mu.Lock()
	s.histories[threadID] = history
	s.mu.Unlock()
	return history
}

// ResetThread 清掉会话的内存历史（会话被删除时调用）
func (s *ChatStreamService) ResetThread(threadID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, threadID)
}
