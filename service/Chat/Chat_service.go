package Chat

import (
	"errors"
	"fmt"

	"github.com/wasdq1234/alter-ego/database"
	"gorm.io/gorm"
)

// ErrThreadNotFound 会话不存在或不属于当前用户
var ErrThreadNotFound = errors.New("会话不存在")

// ChatServiceInterface 聊天会话服务接口
type ChatServiceInterface interface {
	CreateThread(userID, personaID uint, title string) (*database.ChatThread, error)
	ListThreads(userID uint) ([]database.ChatThread, error)
	GetThread(threadID, userID uint) (*database.ChatThread, error)
	DeleteThread(threadID, userID uint) error
	SaveMessage(threadID uint, role, content string) (*database.ChatMessage, error)
	GetMessages(threadID uint) ([]database.ChatMessage, error)
}

// GlobalChatService 全局ChatService实例
var GlobalChatService ChatServiceInterface

type chatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) (ChatServiceInterface, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}

	service := &chatService{db}
	GlobalChatService = service
	return service, nil
}

// CreateThread 创建会话。标题为空时取默认标题
func (s *chatService) CreateThread(userID, personaID uint, title string) (*database.ChatThread, error) {
	if title == "" {
		title = "新的会话"
	}
	thread := &database.ChatThread{
		UserID:    userID,
		PersonaID: personaID,
		Title:     title,
	}
	if err := s.db.Create(thread).Error; err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	return thread, nil
}

// ListThreads 用户的会话列表（最近更新在前）
func (s *chatService) ListThreads(userID uint) ([]database.ChatThread, error) {
	var threads []database.ChatThread
	if err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("查询会话列表失败: %w", err)
	}
	return threads, nil
}

// GetThread 获取会话（校验归属）
func (s *chatService) GetThread(threadID, userID uint) (*database.ChatThread, error) {
	var thread database.ChatThread
	if err := s.db.Where("id = ? AND user_id = ?", threadID, userID).First(&thread).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	return &thread, nil
}

// DeleteThread 删除会话及其消息
func (s *chatService) DeleteThread(threadID, userID uint) error {
	thread, err := s.GetThread(threadID, userID)
	if err != nil {
		return err
	}

	s.db.Where("thread_id = ?", threadID).Delete(&database.ChatMessage{})
	if err := s.db.Delete(thread).Error; err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	return nil
}

// SaveMessage 保存一条消息并刷新会话更新时间
func (s *chatService) SaveMessage(threadID uint, role, content string) (*database.ChatMessage, error) {
	message := &database.ChatMessage{
		ThreadID: threadID,
		Role:     role,
		Content:  content,
	}
	if err := s.db.Create(message).Error; err != nil {
		return nil, fmt.Errorf("保存消息失败: %w", err)
	}

	s.db.Model(&database.ChatThread{}).Where("id = ?", threadID).
		Update("updated_at", message.CreatedAt)
	return message, nil
}

// GetMessages 会话的全部消息（时间正序）
func (s *chatService) GetMessages(threadID uint) ([]database.ChatMessage, error) {
	var messages []database.ChatMessage
	if err := s.db.Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("查询消息失败: %w", err)
	}
	return messages, nil
}
