package Activity_Service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wasdq1234/alter-ego/database"
	Activity "github.com/wasdq1234/alter-ego/service/Activity"
	"gorm.io/gorm"
)

// recordingRunner 记录每次触发的假引擎
type recordingRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *recordingRunner) RunActivity(personaID uint, command, triggeredBy string, userID uint) Activity.ActivityResult {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	r.mu.Unlock()
	return Activity.ActivityResult{PersonaID: personaID, Result: "posted"}
}

func (r *recordingRunner) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.commands...)
}

func activateSchedule(t *testing.T, db *gorm.DB, personaID uint) {
	schedule := &database.ActivitySchedule{
		PersonaID:     personaID,
		UserID:        1,
		ScheduleType:  database.ScheduleTypeInterval,
		ScheduleValue: "6h",
		ActivityType:  "post",
		IsActive:      true,
	}
	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("创建测试调度失败: %v", err)
	}
}

// TestAutoInteractNothingToDo 没有关注也没有候选时一次引擎调用都没有
func TestAutoInteractNothingToDo(t *testing.T) {
	db := setupTestDB(t)
	persona := createTestPersona(t, db, "Mina")
	activateSchedule(t, db, persona.ID)

	runner := &recordingRunner{}
	auto, err := Activity.NewAutoInteractor(db, runner)
	if err != nil {
		t.Fatalf("创建自动互动失败: %v", err)
	}

	auto.Run()
	if n := len(runner.recorded()); n != 0 {
		t.Errorf("期望0次引擎调用, 实际: %d", n)
	}
}

// TestAutoInteractNoActiveSchedules 没有活跃调度的人格不参与巡查
func TestAutoInteractNoActiveSchedules(t *testing.T) {
	db := setupTestDB(t)
	createTestPersona(t, db, "Mina")
	createTestPersona(t, db, "Rio")

	runner := &recordingRunner{}
	auto, _ := Activity.NewAutoInteractor(db, runner)

	auto.Run()
	if n := len(runner.recorded()); n != 0 {
		t.Errorf("期望0次引擎调用, 实际: %d", n)
	}
}

// TestAutoInteractReactPass 关注对象有未互动的新帖时触发反应轮
func TestAutoInteractReactPass(t *testing.T) {
	db := setupTestDB(t)
	persona := createTestPersona(t, db, "Mina")
	followed := createTestPersona(t, db, "Rio")
	activateSchedule(t, db, persona.ID)

	db.Create(&database.SnsFollow{FollowerID: persona.ID, FollowingID: followed.ID})
	db.Create(&database.SnsPost{PersonaID: followed.ID, Content: "新的一天"})

	runner := &recordingRunner{}
	auto, _ := Activity.NewAutoInteractor(db, runner)
	auto.Run()

	commands := runner.recorded()
	found := false
	for _, cmd := range commands {
		if strings.Contains(cmd, "React to new posts") {
			found = true
			if !strings.Contains(cmd, "新的一天") {
				t.Errorf("反应指令应包含帖子内容, 实际: %q", cmd)
			}
		}
	}
	if !found {
		t.Errorf("期望触发反应轮, 实际指令: %v", commands)
	}
}

// TestAutoInteractSkipsInteractedPosts 已点赞的帖子不再进入反应轮
func TestAutoInteractSkipsInteractedPosts(t *testing.T) {
	db := setupTestDB(t)
	persona := createTestPersona(t, db, "Mina")
	followed := createTestPersona(t, db, "Rio")
	activateSchedule(t, db, persona.ID)

	db.Create(&database.SnsFollow{FollowerID: persona.ID, FollowingID: followed.ID})
	post := &database.SnsPost{PersonaID: followed.ID, Content: "已经赞过"}
	db.Create(post)
	db.Create(&database.SnsLike{PostID: post.ID, PersonaID: persona.ID})

	runner := &recordingRunner{}
	auto, _ := Activity.NewAutoInteractor(db, runner)
	auto.Run()

	for _, cmd := range runner.recorded() {
		if strings.Contains(cmd, "React to new posts") {
			t.Errorf("全部帖子都互动过时不应触发反应轮, 实际: %q", cmd)
		}
	}
}

// TestAutoInteractReactOnlyLatestPosts 反应轮只看最新5条：
// 最新5条都互动过时即使更早还有新帖也跳过本轮
func TestAutoInteractReactOnlyLatestPosts(t *testing.T) {
	db := setupTestDB(t)
	persona := createTestPersona(t, db, "Mina")
	followed := createTestPersona(t, db, "Rio")
	activateSchedule(t, db, persona.ID)

	db.Create(&database.SnsFollow{FollowerID: persona.ID, FollowingID: followed.ID})

	base := time.Now().Add(-time.Hour)
	old := &database.SnsPost{PersonaID: followed.ID, Content: "更早的新帖"}
	old.CreatedAt = base
	db.Create(old)
	for i := 0; i < 5; i++ {
		post := &database.SnsPost{PersonaID: followed.ID, Content: "近期帖子"}
		post.CreatedAt = base.Add(time.Duration(i+1) * time.Minute)
		db.Create(post)
		db.Create(&database.SnsLike{PostID: post.ID, PersonaID: persona.ID})
	}

	runner := &recordingRunner{}
	auto, _ := Activity.NewAutoInteractor(db, runner)
	auto.Run()

	for _, cmd := range runner.recorded() {
		if strings.Contains(cmd, "React to new posts") {
			t.Errorf("最新5条都互动过时不应触发反应轮, 实际: %q", cmd)
		}
	}
}

// TestAutoInteractDiscoverPass 存在未关注的人格时触发发现轮
func TestAutoInteractDiscoverPass(t *testing.T) {
	db := setupTestDB(t)
	persona := createTestPersona(t, db, "Mina")
	stranger := createTestPersona(t, db, "Rio")
	activateSchedule(t, db, persona.ID)

	runner := &recordingRunner{}
	auto, _ := Activity.NewAutoInteractor(db, runner)
	auto.Run()

	commands := runner.recorded()
	found := false
	for _, cmd := range commands {
		if strings.Contains(cmd, "Discover new personas") {
			found = true
			if !strings.Contains(cmd, stranger.Name) {
				t.Errorf("发现指令应包含候选人格, 实际: %q", cmd)
			}
			if strings.Contains(cmd, "Mina") {
				t.Errorf("候选不应包含自己, 实际: %q", cmd)
			}
		}
	}
	if !found {
		t.Errorf("期望触发发现轮, 实际指令: %v", commands)
	}
}
