package Persona_Service

import (
	"errors"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/wasdq1234/alter-ego/database"
	Persona "github.com/wasdq1234/alter-ego/service/Persona"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库（使用 SQLite 内存数据库）
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("无法创建测试数据库: %v", err)
	}

	err = db.AutoMigrate(
		&database.User{},
		&database.Persona{},
		&database.PersonaImage{},
		&database.SnsPost{},
		&database.SnsComment{},
		&database.SnsLike{},
		&database.SnsFollow{},
		&database.ActivitySchedule{},
	)
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func setupPersonaService(t *testing.T) (Persona.PersonaServiceInterface, *gorm.DB) {
	db := setupTestDB(t)
	service, err := Persona.NewPersonaService(db)
	if err != nil {
		t.Fatalf("创建人格服务失败: %v", err)
	}
	return service, db
}

// TestCreatePersonaDerivesSystemPrompt 创建时由设定派生系统提示词
func TestCreatePersonaDerivesSystemPrompt(t *testing.T) {
	service, _ := setupPersonaService(t)

	persona, err := service.CreatePersona(1, database.PersonaCreateRequest{
		Name:          "Mina",
		Personality:   "好奇、乐观",
		SpeakingStyle: "简短直接",
		Background:    "美术大学毕业",
	})
	if err != nil {
		t.Fatalf("创建人格失败: %v", err)
	}

	for _, want := range []string{"Mina", "好奇、乐观", "简短直接", "美术大学毕业"} {
		if !strings.Contains(persona.SystemPrompt, want) {
			t.Errorf("系统提示词应包含 %q, 实际: %s", want, persona.SystemPrompt)
		}
	}
	if persona.LoraStatus != database.LoraStatusPending {
		t.Errorf("初始LoRA状态应为pending, 实际: %s", persona.LoraStatus)
	}
}

// TestCreatePersonaEmptyBackground 背景为空时提示词用占位文本
func TestCreatePersonaEmptyBackground(t *testing.T) {
	service, _ := setupPersonaService(t)

	persona, err := service.CreatePersona(1, database.PersonaCreateRequest{
		Name:          "Rio",
		Personality:   "安静",
		SpeakingStyle: "礼貌",
	})
	if err != nil {
		t.Fatalf("创建人格失败: %v", err)
	}
	if !strings.Contains(persona.SystemPrompt, "Not specified") {
		t.Errorf("空背景应使用占位文本, 实际: %s", persona.SystemPrompt)
	}
}

// TestUpdatePersonaRegeneratesPrompt 编辑后重新生成系统提示词
func TestUpdatePersonaRegeneratesPrompt(t *testing.T) {
	service, _ := setupPersonaService(t)

	persona, _ := service.CreatePersona(1, database.PersonaCreateRequest{
		Name:          "Mina",
		Personality:   "好奇",
		SpeakingStyle: "直接",
	})

	updated, err := service.UpdatePersona(persona.ID, 1, database.PersonaUpdateRequest{
		Personality: "沉稳",
	})
	if err != nil {
		t.Fatalf("更新人格失败: %v", err)
	}
	if !strings.Contains(updated.SystemPrompt, "沉稳") {
		t.Errorf("更新后提示词应包含新性格, 实际: %s", updated.SystemPrompt)
	}
	if strings.Contains(updated.SystemPrompt, "好奇") {
		t.Errorf("更新后提示词不应保留旧性格, 实际: %s", updated.SystemPrompt)
	}
	// 未更新的字段保持不变
	if updated.Name != "Mina" {
		t.Errorf("名称不应变化, 实际: %s", updated.Name)
	}
}

// TestPersonaOwnership 归属校验
func TestPersonaOwnership(t *testing.T) {
	service, _ := setupPersonaService(t)

	persona, _ := service.CreatePersona(1, database.PersonaCreateRequest{
		Name:          "Mina",
		Personality:   "好奇",
		SpeakingStyle: "直接",
	})

	if err := service.VerifyOwnership(persona.ID, 1); err != nil {
		t.Errorf("本人校验失败: %v", err)
	}
	if err := service.VerifyOwnership(persona.ID, 2); !errors.Is(err, Persona.ErrPersonaNotFound) {
		t.Errorf("他人校验期望 ErrPersonaNotFound, 实际: %v", err)
	}
	if _, err := service.GetPersona(999, 1); !errors.Is(err, Persona.ErrPersonaNotFound) {
		t.Errorf("不存在的人格期望 ErrPersonaNotFound, 实际: %v", err)
	}
}

// TestDeletePersonaCascades 删除人格时清理关联数据并返回调度ID
func TestDeletePersonaCascades(t *testing.T) {
	service, db := setupPersonaService(t)

	persona, _ := service.CreatePersona(1, database.PersonaCreateRequest{
		Name:          "Mina",
		Personality:   "好奇",
		SpeakingStyle: "直接",
	})
	other, _ := service.CreatePersona(1, database.PersonaCreateRequest{
		Name:          "Rio",
		Personality:   "安静",
		SpeakingStyle: "礼貌",
	})

	post := &database.SnsPost{PersonaID: persona.ID, Content: "hello"}
	db.Create(post)
	db.Create(&database.SnsLike{PostID: post.ID, PersonaID: persona.ID})
	db.Create(&database.SnsFollow{FollowerID: persona.ID, FollowingID: other.ID})
	schedule := &database.ActivitySchedule{
		PersonaID: persona.ID, UserID: 1,
		ScheduleType: database.ScheduleTypeInterval, ScheduleValue: "6h",
		ActivityType: "post", IsActive: true,
	}
	db.Create(schedule)

	scheduleIDs, err := service.DeletePersona(persona.ID, 1)
	if err != nil {
		t.Fatalf("删除人格失败: %v", err)
	}
	if len(scheduleIDs) != 1 || scheduleIDs[0] != schedule.ID {
		t.Errorf("期望返回调度ID [%d], 实际: %v", schedule.ID, scheduleIDs)
	}

	var posts, follows, schedules int64
	db.Model(&database.SnsPost{}).Where("persona_id = ?", persona.ID).Count(&posts)
	db.Unscoped().Model(&database.SnsFollow{}).Where("follower_id = ?", persona.ID).Count(&follows)
	db.Model(&database.ActivitySchedule{}).Where("persona_id = ?", persona.ID).Count(&schedules)
	if posts != 0 || follows != 0 || schedules != 0 {
		t.Errorf("关联数据应被清理: posts=%d follows=%d schedules=%d", posts, follows, schedules)
	}

	// 其他人格不受影响
	if _, err := service.GetPersona(other.ID, 1); err != nil {
		t.Errorf("其他人格不应被删除: %v", err)
	}
}

// TestBuildSystemPrompt 模板字段齐全
func TestBuildSystemPrompt(t *testing.T) {
	prompt := Persona.BuildSystemPrompt("Kai", "热情", "口语化", "旅行博主")
	for _, want := range []string{"Kai", "热情", "口语化", "旅行博主", "stay in character"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("提示词应包含 %q", want)
		}
	}
}
