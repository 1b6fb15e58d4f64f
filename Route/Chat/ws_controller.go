package Chat

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	Auth_Service "github.com/wasdq1234/alter-ego/service/Auth"
	Chat_Service "github.com/wasdq1234/alter-ego/service/Chat"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
	"github.com/sashabaranov/go-openai"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 跨域校验在CORS层做
		return true
	},
}

// wsInbound 客户端发来的聊天消息
type wsInbound struct {
	Content string `json:"content"`
}

// wsOutbound 服务端推送的流式消息
type wsOutbound struct {
	Type    string `json:"type"` // stream | error
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// ChatWebSocket 聊天流式端点。
// WebSocket握手带不了Authorization头，token放在query里
func ChatWebSocket(c *gin.Context) {
	threadID, err := strconv.ParseUint(c.Param("thread_id"), 10, 64)
	if err != nil || threadID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID格式错误"})
		return
	}

	claims, err := Auth_Service.ValidateToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "认证令牌无效或已过期"})
		return
	}

	thread, err := Chat_Service.GlobalChatService.GetThread(uint(threadID), claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}

	persona, err := Persona_Service.GlobalPersonaService.GetPersona(thread.PersonaID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}
	defer conn.Close()

	for {
		var inbound wsInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		if inbound.Content == "" {
			conn.WriteJSON(wsOutbound{Type: "error", Error: "消息内容不能为空", Done: true})
			continue
		}

		handleChatTurn(conn, thread.ID, persona.SystemPrompt, inbound.Content)
	}
}

// handleChatTurn 处理一轮对话：先落库用户消息，再流式推送回复。
// 出错时推送error事件但保持连接，客户端可以重试
func handleChatTurn(conn *websocket.Conn, threadID uint, systemPrompt, userMessage string) {
	if _, err := Chat_Service.GlobalChatService.SaveMessage(threadID, openai.ChatMessageRoleUser, userMessage); err != nil {
		log.Printf("保存用户消息失败 (thread=%d): %v", threadID, err)
		conn.WriteJSON(wsOutbound{Type: "error", Error: "保存消息失败", Done: true})
		return
	}

	// 新一轮开始前清掉上一轮的缓冲
	Chat_Service.GlobalCacheService.ClearStreamBuffer(threadID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	reply, err := Chat_Service.GlobalChatStreamService.StreamChat(ctx, threadID, systemPrompt, userMessage,
		func(chunk string) error {
			if err := Chat_Service.GlobalCacheService.AppendStreamChunk(threadID, chunk); err != nil {
				log.Printf("写入流式缓冲失败 (thread=%d): %v", threadID, err)
			}
			return conn.WriteJSON(wsOutbound{Type: "stream", Content: chunk, Done: false})
		})
	if err != nil {
		log.Printf("聊天流失败 (thread=%d): %v", threadID, err)
		conn.WriteJSON(wsOutbound{Type: "error", Error: "生成回复失败，请重试", Done: true})
		return
	}

	if _, err := Chat_Service.GlobalChatService.SaveMessage(threadID, openai.ChatMessageRoleAssistant, reply); err != nil {
		log.Printf("保存回复失败 (thread=%d): %v", threadID, err)
	}
	Chat_Service.GlobalCacheService.ClearStreamBuffer(threadID)

	conn.WriteJSON(wsOutbound{Type: "stream", Done: true})
}
