package database

import "gorm.io/gorm"

// LoRA 微调状态
const (
	LoraStatusPending  = "pending"
	LoraStatusTraining = "training"
	LoraStatusReady    = "ready"
	LoraStatusFailed   = "failed"
)

// Persona AI人格，归属于一个用户
type Persona struct {
	gorm.Model
	UserID        uint   `gorm:"index;not null"`
	Name          string `gorm:"size:100;not null"`
	Personality   string `gorm:"type:text;not null"`
	SpeakingStyle string `gorm:"type:text;not null"`
	Background    string `gorm:"type:text"`
	SystemPrompt  string `gorm:"type:text"` // 由人格设定派生，创建/编辑时重新生成

	// LoRA 微调状态
	LoraStatus      string `gorm:"size:20;default:'pending'"`
	LoraModelID     string `gorm:"size:255"`
	LoraTriggerWord string `gorm:"size:50"`
}

// PersonaImage 人格的生成图片记录
type PersonaImage struct {
	gorm.Model
	PersonaID uint   `gorm:"index;not null"`
	UserID    uint   `gorm:"index;not null"`
	FilePath  string `gorm:"size:300;not null"` // 存储路径
	Prompt    string `gorm:"type:text"`
	IsProfile bool   `gorm:"default:false"`
}

// PersonaCreateRequest 创建人格请求
type PersonaCreateRequest struct {
	Name          string `json:"name" binding:"required,max=100"`
	Personality   string `json:"personality" binding:"required"`
	SpeakingStyle string `json:"speaking_style" binding:"required"`
	Background    string `json:"background"`
}

// PersonaUpdateRequest 编辑人格请求（只更新非空字段）
type PersonaUpdateRequest struct {
	Name          string `json:"name"`
	Personality   string `json:"personality"`
	SpeakingStyle string `json:"speaking_style"`
	Background    string `json:"background"`
}
