package database

import "gorm.io/gorm"

// ChatThread 用户与人格之间的聊天线程
type ChatThread struct {
	gorm.Model
	UserID    uint   `gorm:"index;not null"`
	PersonaID uint   `gorm:"index;not null"`
	Title     string `gorm:"size:200"`
}

// ChatMessage 聊天消息，按创建时间排序。
// 角色为 user 或 assistant
type ChatMessage struct {
	gorm.Model
	ThreadID uint   `gorm:"index;not null"`
	Role     string `gorm:"size:20;not null"`
	Content  string `gorm:"type:text"`
}
