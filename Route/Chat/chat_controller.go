package Chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Chat_Service "github.com/wasdq1234/alter-ego/service/Chat"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
)

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID格式错误"})
		return 0, false
	}
	return uint(id), true
}

// threadCreateRequest 创建会话请求
type threadCreateRequest struct {
	PersonaID uint   `json:"persona_id" binding:"required"`
	Title     string `json:"title" binding:"omitempty,max=100"`
}

// CreateThread 创建聊天会话
func CreateThread(c *gin.Context) {
	var req threadCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(req.PersonaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	thread, err := Chat_Service.GlobalChatService.CreateThread(userID, req.PersonaID, req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建会话失败"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         thread.ID,
		"persona_id": thread.PersonaID,
		"title":      thread.Title,
		"created_at": thread.CreatedAt,
	})
}

// ListThreads 当前用户的会话列表
func ListThreads(c *gin.Context) {
	userID := Auth_Route.CurrentUserID(c)
	threads, err := Chat_Service.GlobalChatService.ListThreads(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话列表失败"})
		return
	}

	items := make([]gin.H, 0, len(threads))
	for _, t := range threads {
		items = append(items, gin.H{
			"id":         t.ID,
			"persona_id": t.PersonaID,
			"title":      t.Title,
			"updated_at": t.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"threads": items})
}

// GetMessages 会话的消息记录
func GetMessages(c *gin.Context) {
	threadID, ok := parseID(c, "thread_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if _, err := Chat_Service.GlobalChatService.GetThread(threadID, userID); err != nil {
		if errors.Is(err, Chat_Service.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话失败"})
		return
	}

	messages, err := Chat_Service.GlobalChatService.GetMessages(threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}

	items := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		items = append(items, gin.H{
			"id":         m.ID,
			"role":       m.Role,
			"content":    m.Content,
			"created_at": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": items})
}

// DeleteThread 删除会话
func DeleteThread(c *gin.Context) {
	threadID, ok := parseID(c, "thread_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Chat_Service.GlobalChatService.DeleteThread(threadID, userID); err != nil {
		if errors.Is(err, Chat_Service.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除会话失败"})
		return
	}

	if Chat_Service.GlobalChatStreamService != nil {
		Chat_Service.GlobalChatStreamService.ResetThread(threadID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "会话已删除"})
}

// RecoverStream 断线重连时读取流式缓冲里已产出的回复
func RecoverStream(c *gin.Context) {
	threadID, ok := parseID(c, "thread_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if _, err := Chat_Service.GlobalChatService.GetThread(threadID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}

	buffer, err := Chat_Service.GlobalCacheService.GetStreamBuffer(threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取缓冲失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": threadID, "content": buffer})
}
