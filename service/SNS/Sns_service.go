package SNS

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wasdq1234/alter-ego/database"
	Image_Service "github.com/wasdq1234/alter-ego/service/Image"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPostNotFound 帖子不存在
	ErrPostNotFound = errors.New("帖子不存在")
	// ErrCommentNotFound 评论不存在
	ErrCommentNotFound = errors.New("评论不存在")
	// ErrSelfFollow 不能关注自己
	ErrSelfFollow = errors.New("不能关注自己")
	// ErrAlreadyFollowing 已经关注
	ErrAlreadyFollowing = errors.New("已经关注该人格")
	// ErrNotFollowing 未关注
	ErrNotFollowing = errors.New("未关注该人格")
)

// 游标分页时间格式，精确到纳秒保证严格小于语义
const cursorTimeFormat = time.RFC3339Nano

// PersonaBrief 帖子/列表里附带的人格信息
type PersonaBrief struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// FeedItem 信息流条目
type FeedItem struct {
	ID           uint         `json:"id"`
	PersonaID    uint         `json:"persona_id"`
	Content      string       `json:"content"`
	ImageURL     string       `json:"image_url,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	Persona      PersonaBrief `json:"persona"`
	LikeCount    int64        `json:"like_count"`
	CommentCount int64        `json:"comment_count"`
}

// CommentItem 评论条目（含一层回复）
type CommentItem struct {
	ID        uint           `json:"id"`
	PostID    uint           `json:"post_id"`
	PersonaID uint           `json:"persona_id"`
	ParentID  *uint          `json:"parent_id,omitempty"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	Persona   PersonaBrief   `json:"persona"`
	Replies   []*CommentItem `json:"replies"`
}

// SnsServiceInterface 社交服务接口
type SnsServiceInterface interface {
	CreatePost(personaID uint, content, imageURL, imageFilePath string) (*database.SnsPost, error)
	GetPost(postID uint) (*FeedItem, error)
	DeletePost(postID uint) error
	GlobalFeed(limit int, cursor string) ([]FeedItem, string, error)
	FollowingFeed(personaID uint, limit int, cursor string) ([]FeedItem, string, error)

	CreateComment(postID, personaID uint, parentID *uint, content string) (*database.SnsComment, error)
	GetComments(postID uint) ([]*CommentItem, error)
	DeleteComment(commentID uint) (*database.SnsComment, error)

	ToggleLike(postID, personaID uint) (bool, int64, error)
	GetLikes(postID uint) ([]PersonaBrief, error)

	Follow(followerID, followingID uint) (*database.SnsFollow, error)
	Unfollow(followerID, followingID uint) error
	GetFollowers(personaID uint) ([]PersonaBrief, error)
	GetFollowing(personaID uint) ([]PersonaBrief, error)
	FollowingIDs(personaID uint) ([]uint, error)
}

// GlobalSnsService 全局SnsService实例
var GlobalSnsService SnsServiceInterface

type snsService struct {
	db *gorm.DB
}

func NewSnsService(db *gorm.DB) (SnsServiceInterface, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}

	service := &snsService{db}
	GlobalSnsService = service
	return service, nil
}

// CreatePost 发帖（文字/图片至少一项由调用方保证）
func (s *snsService) CreatePost(personaID uint, content, imageURL, imageFilePath string) (*database.SnsPost, error) {
	post := &database.SnsPost{
		PersonaID:     personaID,
		Content:       content,
		ImageURL:      imageURL,
		ImageFilePath: imageFilePath,
	}
	if err := s.db.Create(post).Error; err != nil {
		return nil, fmt.Errorf("创建帖子失败: %w", err)
	}
	return post, nil
}

// GetPost 帖子详情
func (s *snsService) GetPost(postID uint) (*FeedItem, error) {
	var post database.SnsPost
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("查询帖子失败: %w", err)
	}

	items := s.buildFeedItems([]database.SnsPost{post})
	return &items[0], nil
}

// DeletePost 删除帖子及其存储图片、点赞与评论
func (s *snsService) DeletePost(postID uint) error {
	var post database.SnsPost
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("查询帖子失败: %w", err)
	}

	if post.ImageFilePath != "" && Image_Service.GlobalStorageService != nil {
		if err := Image_Service.GlobalStorageService.Remove([]string{post.ImageFilePath}); err != nil {
			log.Printf("清理帖子图片失败 (%s): %v", post.ImageFilePath, err)
		}
	}

	s.db.Unscoped().Where("post_id = ?", postID).Delete(&database.SnsLike{})
	s.db.Where("post_id = ?", postID).Delete(&database.SnsComment{})
	if err := s.db.Delete(&post).Error; err != nil {
		return fmt.Errorf("删除帖子失败: %w", err)
	}
	return nil
}

// GlobalFeed 全站信息流（最新在前，created_at 游标分页）
func (s *snsService) GlobalFeed(limit int, cursor string) ([]FeedItem, string, error) {
	query := s.db.Model(&database.SnsPost{}).Order("created_at DESC")
	return s.pagedFeed(query, limit, cursor)
}

// FollowingFeed 某人格关注对象的信息流
func (s *snsService) FollowingFeed(personaID uint, limit int, cursor string) ([]FeedItem, string, error) {
	followingIDs, err := s.FollowingIDs(personaID)
	if err != nil {
		return nil, "", err
	}
	if len(followingIDs) == 0 {
		return []FeedItem{}, "", nil
	}

	query := s.db.Model(&database.SnsPost{}).
		Where("persona_id IN ?", followingIDs).
		Order("created_at DESC")
	return s.pagedFeed(query, limit, cursor)
}

// pagedFeed 游标分页：多取一条探测下一页，存在时返回本页最旧一条的时间作为游标
func (s *snsService) pagedFeed(query *gorm.DB, limit int, cursor string) ([]FeedItem, string, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	if cursor != "" {
		t, err := time.Parse(cursorTimeFormat, cursor)
		if err != nil {
			return nil, "", fmt.Errorf("游标格式错误: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var posts []database.SnsPost
	if err := query.Limit(limit + 1).Find(&posts).Error; err != nil {
		return nil, "", fmt.Errorf("查询信息流失败: %w", err)
	}

	nextCursor := ""
	if len(posts) > limit {
		posts = posts[:limit]
		nextCursor = posts[len(posts)-1].CreatedAt.Format(cursorTimeFormat)
	}

	return s.buildFeedItems(posts), nextCursor, nil
}

// buildFeedItems 批量附加作者信息与点赞/评论计数
func (s *snsService) buildFeedItems(posts []database.SnsPost) []FeedItem {
	items := make([]FeedItem, 0, len(posts))
	if len(posts) == 0 {
		return items
	}

	personaIDs := make([]uint, 0, len(posts))
	postIDs := make([]uint, 0, len(posts))
	seen := make(map[uint]bool)
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		if !seen[p.PersonaID] {
			seen[p.PersonaID] = true
			personaIDs = append(personaIDs, p.PersonaID)
		}
	}

	names := s.personaNames(personaIDs)
	imageURLs := Persona_Service.ProfileImageURLs(s.db, personaIDs)
	likeCounts := s.countByPost(&database.SnsLike{}, postIDs)
	commentCounts := s.countByPost(&database.SnsComment{}, postIDs)

	for _, p := range posts {
		items = append(items, FeedItem{
			ID:        p.ID,
			PersonaID: p.PersonaID,
			Content:   p.Content,
			ImageURL:  p.ImageURL,
			CreatedAt: p.CreatedAt,
			Persona: PersonaBrief{
				ID:              p.PersonaID,
				Name:            names[p.PersonaID],
				ProfileImageURL: imageURLs[p.PersonaID],
			},
			LikeCount:    likeCounts[p.ID],
			CommentCount: commentCounts[p.ID],
		})
	}
	return items
}

func (s *snsService) personaNames(personaIDs []uint) map[uint]string {
	names := make(map[uint]string)
	var personas []database.Persona
	if err := s.db.Where("id IN ?", personaIDs).Find(&personas).Error; err != nil {
		return names
	}
	for _, p := range personas {
		names[p.ID] = p.Name
	}
	return names
}

type postCount struct {
	PostID uint
	Count  int64
}

func (s *snsService) countByPost(model interface{}, postIDs []uint) map[uint]int64 {
	counts := make(map[uint]int64)
	var rows []postCount
	if err := s.db.Model(model).
		Select("post_id, count(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return counts
	}
	for _, r := range rows {
		counts[r.PostID] = r.Count
	}
	return counts
}

// CreateComment 评论（parentID 非空时为回复，父评论必须属于同一帖子）
func (s *snsService) CreateComment(postID, personaID uint, parentID *uint, content string) (*database.SnsComment, error) {
	var post database.SnsPost
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("查询帖子失败: %w", err)
	}

	if parentID != nil {
		var parent database.SnsComment
		if err := s.db.Where("id = ? AND post_id = ?", *parentID, postID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCommentNotFound
			}
			return nil, fmt.Errorf("查询父评论失败: %w", err)
		}
	}

	comment := &database.SnsComment{
		PostID:    postID,
		PersonaID: personaID,
		ParentID:  parentID,
		Content:   content,
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, fmt.Errorf("创建评论失败: %w", err)
	}
	return comment, nil
}

// GetComments 帖子评论树（顶层评论 + 一层回复）
func (s *snsService) GetComments(postID uint) ([]*CommentItem, error) {
	var comments []database.SnsComment
	if err := s.db.Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("查询评论失败: %w", err)
	}

	personaIDs := make([]uint, 0)
	seen := make(map[uint]bool)
	for _, c := range comments {
		if !seen[c.PersonaID] {
			seen[c.PersonaID] = true
			personaIDs = append(personaIDs, c.PersonaID)
		}
	}
	names := s.personaNames(personaIDs)
	imageURLs := Persona_Service.ProfileImageURLs(s.db, personaIDs)

	byID := make(map[uint]*CommentItem, len(comments))
	topLevel := make([]*CommentItem, 0)

	for _, c := range comments {
		item := &CommentItem{
			ID:        c.ID,
			PostID:    c.PostID,
			PersonaID: c.PersonaID,
			ParentID:  c.ParentID,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
			Persona: PersonaBrief{
				ID:              c.PersonaID,
				Name:            names[c.PersonaID],
				ProfileImageURL: imageURLs[c.PersonaID],
			},
			Replies: []*CommentItem{},
		}
		byID[c.ID] = item
	}
	for _, c := range comments {
		item := byID[c.ID]
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, item)
				continue
			}
		}
		topLevel = append(topLevel, item)
	}

	return topLevel, nil
}

// DeleteComment 删除评论，返回被删除的评论（供调用方校验归属后使用）
func (s *snsService) DeleteComment(commentID uint) (*database.SnsComment, error) {
	var comment database.SnsComment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("查询评论失败: %w", err)
	}

	if err := s.db.Delete(&comment).Error; err != nil {
		return nil, fmt.Errorf("删除评论失败: %w", err)
	}
	return &comment, nil
}

// ToggleLike 点赞切换：已点赞则取消，否则点赞。返回(是否点赞, 当前点赞数)
func (s *snsService) ToggleLike(postID, personaID uint) (bool, int64, error) {
	var post database.SnsPost
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, 0, ErrPostNotFound
		}
		return false, 0, fmt.Errorf("查询帖子失败: %w", err)
	}

	var existing database.SnsLike
	err := s.db.Where("post_id = ? AND persona_id = ?", postID, personaID).First(&existing).Error
	liked := false
	if err == nil {
		// 取消点赞。硬删除，避免软删除行占用唯一索引
		if err := s.db.Unscoped().Delete(&existing).Error; err != nil {
			return false, 0, fmt.Errorf("取消点赞失败: %w", err)
		}
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		like := &database.SnsLike{PostID: postID, PersonaID: personaID}
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
			return false, 0, fmt.Errorf("点赞失败: %w", err)
		}
		liked = true
	} else {
		return false, 0, fmt.Errorf("查询点赞失败: %w", err)
	}

	var count int64
	s.db.Model(&database.SnsLike{}).Where("post_id = ?", postID).Count(&count)
	return liked, count, nil
}

// GetLikes 帖子点赞列表
func (s *snsService) GetLikes(postID uint) ([]PersonaBrief, error) {
	var likes []database.SnsLike
	if err := s.db.Where("post_id = ?", postID).
		Order("created_at DESC").
		Find(&likes).Error; err != nil {
		return nil, fmt.Errorf("查询点赞列表失败: %w", err)
	}

	personaIDs := make([]uint, 0, len(likes))
	for _, l := range likes {
		personaIDs = append(personaIDs, l.PersonaID)
	}
	return s.personaBriefs(personaIDs), nil
}

// Follow 关注。自己关注自己或重复关注返回明确错误
func (s *snsService) Follow(followerID, followingID uint) (*database.SnsFollow, error) {
	if followerID == followingID {
		return nil, ErrSelfFollow
	}

	var target database.Persona
	if err := s.db.First(&target, followingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Persona_Service.ErrPersonaNotFound
		}
		return nil, fmt.Errorf("查询目标人格失败: %w", err)
	}

	follow := &database.SnsFollow{FollowerID: followerID, FollowingID: followingID}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(follow)
	if result.Error != nil {
		return nil, fmt.Errorf("关注失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyFollowing
	}
	return follow, nil
}

// Unfollow 取关。硬删除，避免软删除行占用唯一索引
func (s *snsService) Unfollow(followerID, followingID uint) error {
	var follow database.SnsFollow
	err := s.db.Where("follower_id = ? AND following_id = ?", followerID, followingID).First(&follow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFollowing
		}
		return fmt.Errorf("查询关注关系失败: %w", err)
	}

	if err := s.db.Unscoped().Delete(&follow).Error; err != nil {
		return fmt.Errorf("取消关注失败: %w", err)
	}
	return nil
}

// GetFollowers 粉丝列表
func (s *snsService) GetFollowers(personaID uint) ([]PersonaBrief, error) {
	var follows []database.SnsFollow
	if err := s.db.Where("following_id = ?", personaID).
		Order("created_at DESC").
		Find(&follows).Error; err != nil {
		return nil, fmt.Errorf("查询粉丝列表失败: %w", err)
	}

	ids := make([]uint, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, f.FollowerID)
	}
	return s.personaBriefs(ids), nil
}

// GetFollowing 关注列表
func (s *snsService) GetFollowing(personaID uint) ([]PersonaBrief, error) {
	ids, err := s.FollowingIDs(personaID)
	if err != nil {
		return nil, err
	}
	return s.personaBriefs(ids), nil
}

// FollowingIDs 关注对象的人格ID列表
func (s *snsService) FollowingIDs(personaID uint) ([]uint, error) {
	var ids []uint
	if err := s.db.Model(&database.SnsFollow{}).
		Where("follower_id = ?", personaID).
		Pluck("following_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询关注列表失败: %w", err)
	}
	return ids, nil
}

func (s *snsService) personaBriefs(personaIDs []uint) []PersonaBrief {
	briefs := make([]PersonaBrief, 0, len(personaIDs))
	if len(personaIDs) == 0 {
		return briefs
	}

	names := s.personaNames(personaIDs)
	imageURLs := Persona_Service.ProfileImageURLs(s.db, personaIDs)
	for _, id := range personaIDs {
		briefs = append(briefs, PersonaBrief{
			ID:              id,
			Name:            names[id],
			ProfileImageURL: imageURLs[id],
		})
	}
	return briefs
}
