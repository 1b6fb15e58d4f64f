package Activity

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/wasdq1234/alter-ego/database"
	"gorm.io/gorm"
)

const (
	reactPostLimit      = 5
	discoverCandidates  = 5
	candidatePersonaCap = 80
)

// AutoInteractor 自动互动巡查：对每个有活跃调度的人格跑两轮——
// 对关注对象的新帖做反应，再发现还没关注的人格
type AutoInteractor struct {
	db     *gorm.DB
	engine ActivityRunner
}

func NewAutoInteractor(db *gorm.DB, engine ActivityRunner) (*AutoInteractor, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}
	if engine == nil {
		return nil, errors.New("活动引擎不能为空")
	}
	return &AutoInteractor{db: db, engine: engine}, nil
}

// Run 执行一轮巡查。单个人格失败不影响其余人格
func (a *AutoInteractor) Run() {
	personas, err := a.activePersonas()
	if err != nil {
		log.Printf("自动互动巡查失败: %v", err)
		return
	}

	for personaID, userID := range personas {
		a.runPersona(personaID, userID)
	}
}

// activePersonas 有活跃调度的人格及其归属用户
func (a *AutoInteractor) activePersonas() (map[uint]uint, error) {
	var schedules []database.ActivitySchedule
	if err := a.db.Where("is_active = ?", true).Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("查询活跃调度失败: %w", err)
	}

	personas := make(map[uint]uint)
	for _, s := range schedules {
		personas[s.PersonaID] = s.UserID
	}
	return personas, nil
}

func (a *AutoInteractor) runPersona(personaID, userID uint) {
	if cmd := a.reactCommand(personaID); cmd != "" {
		a.engine.RunActivity(personaID, cmd, database.TriggeredByAuto, userID)
	}
	if cmd := a.discoverCommand(personaID); cmd != "" {
		a.engine.RunActivity(personaID, cmd, database.TriggeredByAuto, userID)
	}
}

// reactCommand 反应轮：只看关注信息流最新的5条，在其中挑还没互动过的。
// 最新5条都互动过或没有可反应的帖子时返回空串跳过
func (a *AutoInteractor) reactCommand(personaID uint) string {
	var followingIDs []uint
	if err := a.db.Model(&database.SnsFollow{}).
		Where("follower_id = ?", personaID).
		Pluck("following_id", &followingIDs).Error; err != nil || len(followingIDs) == 0 {
		return ""
	}

	var posts []database.SnsPost
	if err := a.db.Where("persona_id IN ?", followingIDs).
		Order("created_at DESC").Limit(reactPostLimit).
		Find(&posts).Error; err != nil {
		log.Printf("查询关注信息流失败 (persona=%d): %v", personaID, err)
		return ""
	}

	fresh := make([]database.SnsPost, 0, len(posts))
	for _, p := range posts {
		if a.alreadyInteracted(personaID, p.ID) {
			continue
		}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("React to new posts in your feed. Pick one post and like it or comment on it:\n")
	for _, p := range fresh {
		fmt.Fprintf(&b, "- post_id=%d: %s\n", p.ID, capRunes(p.Content, contextPostContentCap))
	}
	return b.String()
}

func (a *AutoInteractor) alreadyInteracted(personaID, postID uint) bool {
	var liked int64
	a.db.Model(&database.SnsLike{}).
		Where("post_id = ? AND persona_id = ?", postID, personaID).
		Count(&liked)
	if liked > 0 {
		return true
	}
	var commented int64
	a.db.Model(&database.SnsComment{}).
		Where("post_id = ? AND persona_id = ?", postID, personaID).
		Count(&commented)
	return commented > 0
}

// discoverCommand 发现轮：还没关注的其他人格候选。没有候选时跳过
func (a *AutoInteractor) discoverCommand(personaID uint) string {
	var followingIDs []uint
	a.db.Model(&database.SnsFollow{}).
		Where("follower_id = ?", personaID).
		Pluck("following_id", &followingIDs)

	excluded := append(followingIDs, personaID)

	var candidates []database.Persona
	if err := a.db.Where("id NOT IN ?", excluded).
		Order("created_at DESC").Limit(discoverCandidates).
		Find(&candidates).Error; err != nil {
		log.Printf("查询关注候选失败 (persona=%d): %v", personaID, err)
		return ""
	}
	if len(candidates) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Discover new personas you might want to follow. Pick at most one to follow:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- persona_id=%d name=%s: %s\n", c.ID, c.Name, capRunes(c.Personality, candidatePersonaCap))
	}
	return b.String()
}
