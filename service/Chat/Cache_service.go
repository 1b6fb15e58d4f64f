package Chat

import (
	"context"
	"fmt"
	"time"

	"github.com/wasdq1234/alter-ego/database"
)

// 流式回复缓冲的过期时间。断线重连只需要覆盖一次回复的时长
const streamBufferTTL = 10 * time.Minute

// CacheServiceInterface 流式回复缓冲接口。
// 客户端断线时可以从缓冲恢复已产出的部分回复
type CacheServiceInterface interface {
	AppendStreamChunk(threadID uint, chunk string) error
	GetStreamBuffer(threadID uint) (string, error)
	ClearStreamBuffer(threadID uint) error
}

// GlobalCacheService 全局CacheService实例
var GlobalCacheService CacheServiceInterface

type cacheService struct{}

func NewCacheService() CacheServiceInterface {
	service := &cacheService{}
	GlobalCacheService = service
	return service
}

func streamBufferKey(threadID uint) string {
	return fmt.Sprintf("chat:stream:%d", threadID)
}

// AppendStreamChunk 追加一块流式回复。Redis不可用时静默跳过
func (s *cacheService) AppendStreamChunk(threadID uint, chunk string) error {
	client := database.GetRedis()
	if client == nil {
		return nil
	}

	ctx := context.Background()
	key := streamBufferKey(threadID)
	if err := client.Append(ctx, key, chunk).Err(); err != nil {
		return fmt.Errorf("写入流式缓冲失败: %w", err)
	}
	client.Expire(ctx, key, streamBufferTTL)
	return nil
}

// GetStreamBuffer 读取当前缓冲的回复内容。没有缓冲时返回空串
func (s *cacheService) GetStreamBuffer(threadID uint) (string, error) {
	client := database.GetRedis()
	if client == nil {
		return "", nil
	}

	ctx := context.Background()
	val, err := client.Get(ctx, streamBufferKey(threadID)).Result()
	if err != nil {
		// 键不存在按空缓冲处理
		return "", nil
	}
	return val, nil
}

// ClearStreamBuffer 一轮回复结束后清空缓冲
func (s *cacheService) ClearStreamBuffer(threadID uint) error {
	client := database.GetRedis()
	if client == nil {
		return nil
	}

	if err := client.Del(context.Background(), streamBufferKey(threadID)).Err(); err != nil {
		return fmt.Errorf("清空流式缓冲失败: %w", err)
	}
	return nil
}
