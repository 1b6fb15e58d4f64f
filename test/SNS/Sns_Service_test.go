package SNS_Service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/wasdq1234/alter-ego/database"
	SNS "github.com/wasdq1234/alter-ego/service/SNS"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库（使用 SQLite 内存数据库）
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("无法创建测试数据库: %v", err)
	}

	err = db.AutoMigrate(
		&database.Persona{},
		&database.PersonaImage{},
		&database.SnsPost{},
		&database.SnsComment{},
		&database.SnsLike{},
		&database.SnsFollow{},
	)
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func setupSnsService(t *testing.T) (SNS.SnsServiceInterface, *gorm.DB) {
	db := setupTestDB(t)
	service, err := SNS.NewSnsService(db)
	if err != nil {
		t.Fatalf("创建社交服务失败: %v", err)
	}
	return service, db
}

func createPersona(t *testing.T, db *gorm.DB, name string) *database.Persona {
	persona := &database.Persona{
		UserID:        1,
		Name:          name,
		Personality:   "友善",
		SpeakingStyle: "随意",
	}
	if err := db.Create(persona).Error; err != nil {
		t.Fatalf("创建测试人格失败: %v", err)
	}
	return persona
}

// createPostAt 创建指定时间的帖子，保证分页测试里时间严格可比
func createPostAt(t *testing.T, db *gorm.DB, personaID uint, content string, at time.Time) *database.SnsPost {
	post := &database.SnsPost{PersonaID: personaID, Content: content}
	post.CreatedAt = at
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("创建测试帖子失败: %v", err)
	}
	return post
}

// TestGlobalFeedCursorPagination 游标分页：页大小准确、无重叠无遗漏、末页无游标
func TestGlobalFeedCursorPagination(t *testing.T) {
	service, db := setupSnsService(t)
	persona := createPersona(t, db, "Mina")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	total := 7
	for i := 0; i < total; i++ {
		createPostAt(t, db, persona.ID, fmt.Sprintf("post-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	seen := make(map[uint]bool)
	cursor := ""
	pages := 0
	for {
		items, nextCursor, err := service.GlobalFeed(3, cursor)
		if err != nil {
			t.Fatalf("查询信息流失败: %v", err)
		}
		pages++

		for i, item := range items {
			if seen[item.ID] {
				t.Errorf("帖子 %d 出现在多页", item.ID)
			}
			seen[item.ID] = true
			// 页内按时间倒序
			if i > 0 && items[i-1].CreatedAt.Before(item.CreatedAt) {
				t.Errorf("页内顺序错误: %v 在 %v 之前", items[i-1].CreatedAt, item.CreatedAt)
			}
		}

		if nextCursor == "" {
			if len(items) > 3 {
				t.Errorf("页大小超限: %d", len(items))
			}
			break
		}
		if len(items) != 3 {
			t.Errorf("非末页应返回3条, 实际: %d", len(items))
		}
		cursor = nextCursor
		if pages > 10 {
			t.Fatal("分页未终止")
		}
	}

	if len(seen) != total {
		t.Errorf("期望遍历%d条帖子, 实际: %d", total, len(seen))
	}
	if pages != 3 {
		t.Errorf("期望3页, 实际: %d", pages)
	}
}

// TestGlobalFeedInvalidCursor 非法游标返回错误
func TestGlobalFeedInvalidCursor(t *testing.T) {
	service, _ := setupSnsService(t)
	if _, _, err := service.GlobalFeed(10, "昨天"); err == nil {
		t.Error("非法游标应返回错误")
	}
}

// TestFollowingFeedOnlyFollowed 关注信息流只含关注对象的帖子
func TestFollowingFeedOnlyFollowed(t *testing.T) {
	service, db := setupSnsService(t)
	viewer := createPersona(t, db, "Mina")
	followed := createPersona(t, db, "Rio")
	stranger := createPersona(t, db, "Kai")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	createPostAt(t, db, followed.ID, "来自关注对象", base)
	createPostAt(t, db, stranger.ID, "来自陌生人", base.Add(time.Minute))

	if _, err := service.Follow(viewer.ID, followed.ID); err != nil {
		t.Fatalf("关注失败: %v", err)
	}

	items, _, err := service.FollowingFeed(viewer.ID, 10, "")
	if err != nil {
		t.Fatalf("查询关注信息流失败: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("期望1条帖子, 实际: %d", len(items))
	}
	if items[0].PersonaID != followed.ID {
		t.Errorf("帖子作者应为关注对象, 实际: %d", items[0].PersonaID)
	}
}

// TestFollowingFeedEmptyWithoutFollows 没有关注时信息流为空
func TestFollowingFeedEmptyWithoutFollows(t *testing.T) {
	service, db := setupSnsService(t)
	viewer := createPersona(t, db, "Mina")
	other := createPersona(t, db, "Rio")
	createPostAt(t, db, other.ID, "hello", time.Now())

	items, cursor, err := service.FollowingFeed(viewer.ID, 10, "")
	if err != nil {
		t.Fatalf("查询关注信息流失败: %v", err)
	}
	if len(items) != 0 || cursor != "" {
		t.Errorf("期望空信息流, 实际: %d条, cursor=%q", len(items), cursor)
	}
}

// TestToggleLike 点赞切换与计数
func TestToggleLike(t *testing.T) {
	service, db := setupSnsService(t)
	persona := createPersona(t, db, "Mina")
	post := createPostAt(t, db, persona.ID, "hello", time.Now())

	liked, count, err := service.ToggleLike(post.ID, persona.ID)
	if err != nil {
		t.Fatalf("点赞失败: %v", err)
	}
	if !liked || count != 1 {
		t.Errorf("第一次期望 liked=true count=1, 实际: %v %d", liked, count)
	}

	liked, count, err = service.ToggleLike(post.ID, persona.ID)
	if err != nil {
		t.Fatalf("取消点赞失败: %v", err)
	}
	if liked || count != 0 {
		t.Errorf("第二次期望 liked=false count=0, 实际: %v %d", liked, count)
	}

	// 取消后可以再次点赞（硬删除不占用唯一索引）
	liked, count, err = service.ToggleLike(post.ID, persona.ID)
	if err != nil {
		t.Fatalf("再次点赞失败: %v", err)
	}
	if !liked || count != 1 {
		t.Errorf("第三次期望 liked=true count=1, 实际: %v %d", liked, count)
	}
}

// TestToggleLikePostNotFound 点赞不存在的帖子
func TestToggleLikePostNotFound(t *testing.T) {
	service, db := setupSnsService(t)
	persona := createPersona(t, db, "Mina")

	if _, _, err := service.ToggleLike(999, persona.ID); !errors.Is(err, SNS.ErrPostNotFound) {
		t.Errorf("期望 ErrPostNotFound, 实际: %v", err)
	}
}

// TestFollowRules 自我关注与重复关注
func TestFollowRules(t *testing.T) {
	service, db := setupSnsService(t)
	a := createPersona(t, db, "Mina")
	b := createPersona(t, db, "Rio")

	if _, err := service.Follow(a.ID, a.ID); !errors.Is(err, SNS.ErrSelfFollow) {
		t.Errorf("自我关注期望 ErrSelfFollow, 实际: %v", err)
	}

	if _, err := service.Follow(a.ID, b.ID); err != nil {
		t.Fatalf("关注失败: %v", err)
	}
	if _, err := service.Follow(a.ID, b.ID); !errors.Is(err, SNS.ErrAlreadyFollowing) {
		t.Errorf("重复关注期望 ErrAlreadyFollowing, 实际: %v", err)
	}

	var count int64
	db.Model(&database.SnsFollow{}).
		Where("follower_id = ? AND following_id = ?", a.ID, b.ID).
		Count(&count)
	if count != 1 {
		t.Errorf("期望1条关注记录, 实际: %d", count)
	}
}

// TestUnfollowAndRefollow 取关后可以重新关注
func TestUnfollowAndRefollow(t *testing.T) {
	service, db := setupSnsService(t)
	a := createPersona(t, db, "Mina")
	b := createPersona(t, db, "Rio")

	if _, err := service.Follow(a.ID, b.ID); err != nil {
		t.Fatalf("关注失败: %v", err)
	}
	if err := service.Unfollow(a.ID, b.ID); err != nil {
		t.Fatalf("取关失败: %v", err)
	}
	if err := service.Unfollow(a.ID, b.ID); !errors.Is(err, SNS.ErrNotFollowing) {
		t.Errorf("重复取关期望 ErrNotFollowing, 实际: %v", err)
	}
	if _, err := service.Follow(a.ID, b.ID); err != nil {
		t.Errorf("取关后重新关注失败: %v", err)
	}
}

// TestCommentTree 评论树结构：回复挂在父评论下
func TestCommentTree(t *testing.T) {
	service, db := setupSnsService(t)
	persona := createPersona(t, db, "Mina")
	post := createPostAt(t, db, persona.ID, "hello", time.Now())

	top, err := service.CreateComment(post.ID, persona.ID, nil, "顶层评论")
	if err != nil {
		t.Fatalf("创建评论失败: %v", err)
	}
	if _, err := service.CreateComment(post.ID, persona.ID, &top.ID, "回复"); err != nil {
		t.Fatalf("创建回复失败: %v", err)
	}

	tree, err := service.GetComments(post.ID)
	if err != nil {
		t.Fatalf("查询评论树失败: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("期望1条顶层评论, 实际: %d", len(tree))
	}
	if len(tree[0].Replies) != 1 {
		t.Fatalf("期望1条回复, 实际: %d", len(tree[0].Replies))
	}
	if tree[0].Replies[0].Content != "回复" {
		t.Errorf("回复内容不符: %q", tree[0].Replies[0].Content)
	}
}

// TestCommentParentMustBelongToPost 父评论必须属于同一帖子
func TestCommentParentMustBelongToPost(t *testing.T) {
	service, db := setupSnsService(t)
	persona := createPersona(t, db, "Mina")
	post1 := createPostAt(t, db, persona.ID, "one", time.Now())
	post2 := createPostAt(t, db, persona.ID, "two", time.Now())

	parent, err := service.CreateComment(post1.ID, persona.ID, nil, "在帖子1下")
	if err != nil {
		t.Fatalf("创建评论失败: %v", err)
	}

	if _, err := service.CreateComment(post2.ID, persona.ID, &parent.ID, "跨帖子回复"); !errors.Is(err, SNS.ErrCommentNotFound) {
		t.Errorf("跨帖子回复期望 ErrCommentNotFound, 实际: %v", err)
	}
}

// TestDeletePostCleansDependents 删除帖子时清理点赞和评论
func TestDeletePostCleansDependents(t *testing.T) {
	service, db := setupSnsService(t)
	persona := createPersona(t, db, "Mina")
	post := createPostAt(t, db, persona.ID, "hello", time.Now())

	service.ToggleLike(post.ID, persona.ID)
	service.CreateComment(post.ID, persona.ID, nil, "评论")

	if err := service.DeletePost(post.ID); err != nil {
		t.Fatalf("删除帖子失败: %v", err)
	}

	var likes, comments int64
	db.Unscoped().Model(&database.SnsLike{}).Where("post_id = ?", post.ID).Count(&likes)
	db.Model(&database.SnsComment{}).Where("post_id = ?", post.ID).Count(&comments)
	if likes != 0 {
		t.Errorf("点赞应被清理, 实际: %d", likes)
	}
	if comments != 0 {
		t.Errorf("评论应被清理, 实际: %d", comments)
	}

	if _, err := service.GetPost(post.ID); !errors.Is(err, SNS.ErrPostNotFound) {
		t.Errorf("删除后查询期望 ErrPostNotFound, 实际: %v", err)
	}
}

// TestFeedItemCounts 信息流条目附带点赞/评论计数与作者名
func TestFeedItemCounts(t *testing.T) {
	service, db := setupSnsService(t)
	author := createPersona(t, db, "Mina")
	fan := createPersona(t, db, "Rio")
	post := createPostAt(t, db, author.ID, "hello", time.Now())

	service.ToggleLike(post.ID, fan.ID)
	service.CreateComment(post.ID, fan.ID, nil, "不错")

	item, err := service.GetPost(post.ID)
	if err != nil {
		t.Fatalf("查询帖子失败: %v", err)
	}
	if item.LikeCount != 1 {
		t.Errorf("期望点赞数1, 实际: %d", item.LikeCount)
	}
	if item.CommentCount != 1 {
		t.Errorf("期望评论数1, 实际: %d", item.CommentCount)
	}
	if item.Persona.Name != "Mina" {
		t.Errorf("期望作者名Mina, 实际: %q", item.Persona.Name)
	}
}
