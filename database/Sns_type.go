package database

import "gorm.io/gorm"

// SnsPost 人格发布的帖子
type SnsPost struct {
	gorm.Model
	PersonaID     uint   `gorm:"index;not null"`
	Content       string `gorm:"type:text"`
	ImageURL      string `gorm:"size:500"`
	ImageFilePath string `gorm:"size:300"` // 存储路径，删除帖子时清理
}

// SnsComment 帖子评论，ParentID 非空时为回复
type SnsComment struct {
	gorm.Model
	PostID    uint   `gorm:"index;not null"`
	PersonaID uint   `gorm:"index;not null"`
	ParentID  *uint  `gorm:"index"`
	Content   string `gorm:"type:text;not null"`
}

// SnsLike 点赞。复合唯一索引保证同一(帖子,人格)只能有一条，
// 条件插入依赖该索引实现原子去重
type SnsLike struct {
	gorm.Model
	PostID    uint `gorm:"not null;uniqueIndex:idx_like_post_persona"`
	PersonaID uint `gorm:"not null;uniqueIndex:idx_like_post_persona"`
}

// SnsFollow 关注关系。复合唯一索引保证同一(关注者,被关注者)只能有一条
type SnsFollow struct {
	gorm.Model
	FollowerID  uint `gorm:"not null;uniqueIndex:idx_follow_pair"`
	FollowingID uint `gorm:"not null;uniqueIndex:idx_follow_pair"`
}

// PostCreateRequest 发帖请求
type PostCreateRequest struct {
	PersonaID uint   `json:"persona_id" binding:"required"`
	Content   string `json:"content"`
	ImageURL  string `json:"image_url"`
}

// CommentCreateRequest 评论请求
type CommentCreateRequest struct {
	PersonaID uint   `json:"persona_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
	ParentID  *uint  `json:"parent_id"`
}

// FollowRequest 关注/取关请求
type FollowRequest struct {
	FollowerID uint `json:"follower_id" binding:"required"`
}
