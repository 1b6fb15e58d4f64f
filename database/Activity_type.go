package database

import "gorm.io/gorm"

// 活动触发来源
const (
	TriggeredByManual   = "manual"
	TriggeredBySchedule = "schedule"
	TriggeredByAuto     = "auto"
)

// 调度类型
const (
	ScheduleTypeCron     = "cron"
	ScheduleTypeInterval = "interval"
)

// ActivitySchedule 人格的活动调度配置。
// 不变量：is_active 的行与调度器中的活跃定时任务一一对应
type ActivitySchedule struct {
	gorm.Model
	PersonaID      uint   `gorm:"index;not null"`
	UserID         uint   `gorm:"index;not null"`
	ScheduleType   string `gorm:"size:20;not null"`  // cron | interval
	ScheduleValue  string `gorm:"size:100;not null"` // crontab 表达式或 <N><s|m|h|d>
	ActivityType   string `gorm:"size:20;default:'post'"`
	ActivityPrompt string `gorm:"type:text"`
	IsActive       bool   `gorm:"default:true"`
}

// ActivityLog 活动日志，每次引擎运行追加一条
type ActivityLog struct {
	gorm.Model
	PersonaID    uint   `gorm:"index;not null"`
	ActivityType string `gorm:"size:20;not null"`
	Detail       string `gorm:"type:text"` // JSON：内容、目标、图片、结果
	TriggeredBy  string `gorm:"size:20;default:'manual'"`
}

// ScheduleCreateRequest 创建调度请求
type ScheduleCreateRequest struct {
	ScheduleType   string `json:"schedule_type" binding:"required,oneof=cron interval"`
	ScheduleValue  string `json:"schedule_value" binding:"required"`
	ActivityType   string `json:"activity_type" binding:"required,oneof=post comment like follow"`
	ActivityPrompt string `json:"activity_prompt"`
	IsActive       *bool  `json:"is_active"`
}

// ScheduleUpdateRequest 编辑调度请求（只更新非空字段）
type ScheduleUpdateRequest struct {
	ScheduleType   string `json:"schedule_type" binding:"omitempty,oneof=cron interval"`
	ScheduleValue  string `json:"schedule_value"`
	ActivityType   string `json:"activity_type" binding:"omitempty,oneof=post comment like follow"`
	ActivityPrompt string `json:"activity_prompt"`
	IsActive       *bool  `json:"is_active"`
}
