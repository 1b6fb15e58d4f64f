package Activity_Service

import (
	"sync"
	"testing"
	"time"

	"github.com/wasdq1234/alter-ego/database"
	Activity "github.com/wasdq1234/alter-ego/service/Activity"
)

// countingRunner 记录触发次数的假引擎
type countingRunner struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRunner) RunActivity(personaID uint, command, triggeredBy string, userID uint) Activity.ActivityResult {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return Activity.ActivityResult{PersonaID: personaID, Result: "posted"}
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// TestParseInterval 间隔表达式解析
func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"秒", "45s", 45 * time.Second, false},
		{"分钟", "30m", 30 * time.Minute, false},
		{"小时", "3h", 3 * time.Hour, false},
		{"天", "2d", 48 * time.Hour, false},
		{"带空格", "10 m", 10 * time.Minute, false},
		{"未知单位", "3x", 0, true},
		{"单位在前", "h3", 0, true},
		{"零", "0h", 0, true},
		{"空串", "", 0, true},
		{"纯数字", "15", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Activity.ParseInterval(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInterval(%q) 期望返回错误", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterval(%q) 失败: %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("ParseInterval(%q) = %v, 期望 %v", tt.value, got, tt.want)
			}
		})
	}
}

// TestValidateSchedule crontab与间隔表达式校验
func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name         string
		scheduleType string
		value        string
		wantErr      bool
	}{
		{"合法crontab", database.ScheduleTypeCron, "0 9 * * *", false},
		{"非法crontab", database.ScheduleTypeCron, "每天早上九点", true},
		{"合法间隔", database.ScheduleTypeInterval, "6h", false},
		{"非法间隔", database.ScheduleTypeInterval, "6x", true},
		{"未知类型", "weekly", "0 9 * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Activity.ValidateSchedule(tt.scheduleType, tt.value)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateSchedule(%q, %q) 期望返回错误", tt.scheduleType, tt.value)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateSchedule(%q, %q) 失败: %v", tt.scheduleType, tt.value, err)
			}
		})
	}
}

func newTestScheduler(t *testing.T) (*Activity.ActivityScheduler, *countingRunner) {
	db := setupTestDB(t)
	runner := &countingRunner{}
	scheduler, err := Activity.NewActivityScheduler(db, runner, nil)
	if err != nil {
		t.Fatalf("创建调度器失败: %v", err)
	}
	return scheduler, runner
}

// TestRegisterInvalidSchedule 非法表达式拒绝注册，不产生任务
func TestRegisterInvalidSchedule(t *testing.T) {
	scheduler, _ := newTestScheduler(t)
	defer scheduler.Stop()

	schedule := &database.ActivitySchedule{
		PersonaID:     1,
		UserID:        1,
		ScheduleType:  database.ScheduleTypeInterval,
		ScheduleValue: "abc",
	}
	schedule.ID = 1

	if err := scheduler.Register(schedule); err == nil {
		t.Fatal("期望注册失败")
	}
	if scheduler.HasJob(1) {
		t.Error("非法调度不应产生任务")
	}
}

// TestRegisterIdempotent 同一调度重复注册只保留一个任务
func TestRegisterIdempotent(t *testing.T) {
	scheduler, _ := newTestScheduler(t)
	defer scheduler.Stop()

	schedule := &database.ActivitySchedule{
		PersonaID:     1,
		UserID:        1,
		ScheduleType:  database.ScheduleTypeInterval,
		ScheduleValue: "1h",
		ActivityType:  "post",
	}
	schedule.ID = 7

	if err := scheduler.Register(schedule); err != nil {
		t.Fatalf("第一次注册失败: %v", err)
	}
	if err := scheduler.Register(schedule); err != nil {
		t.Fatalf("第二次注册失败: %v", err)
	}

	if scheduler.JobCount() != 1 {
		t.Errorf("期望1个任务, 实际: %d", scheduler.JobCount())
	}
}

// TestUnregister 注销后任务消失
func TestUnregister(t *testing.T) {
	scheduler, _ := newTestScheduler(t)
	defer scheduler.Stop()

	schedule := &database.ActivitySchedule{
		PersonaID:     1,
		UserID:        1,
		ScheduleType:  database.ScheduleTypeCron,
		ScheduleValue: "0 9 * * *",
		ActivityType:  "post",
	}
	schedule.ID = 3

	if err := scheduler.Register(schedule); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if !scheduler.HasJob(3) {
		t.Fatal("注册后应存在任务")
	}

	scheduler.Unregister(3)
	if scheduler.HasJob(3) {
		t.Error("注销后任务仍然存在")
	}
	// 重复注销不报错
	scheduler.Unregister(3)
}

// TestIntervalJobFires 短间隔任务会触发引擎
func TestIntervalJobFires(t *testing.T) {
	scheduler, runner := newTestScheduler(t)
	defer scheduler.Stop()

	schedule := &database.ActivitySchedule{
		PersonaID:     1,
		UserID:        1,
		ScheduleType:  database.ScheduleTypeInterval,
		ScheduleValue: "1s",
		ActivityType:  "post",
	}
	schedule.ID = 5

	if err := scheduler.Register(schedule); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if runner.count() > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("1秒间隔任务在3秒内未触发")
}

// TestLoadActive 只加载活跃调度
func TestLoadActive(t *testing.T) {
	db := setupTestDB(t)
	runner := &countingRunner{}
	scheduler, err := Activity.NewActivityScheduler(db, runner, nil)
	if err != nil {
		t.Fatalf("创建调度器失败: %v", err)
	}
	defer scheduler.Stop()

	active := &database.ActivitySchedule{
		PersonaID: 1, UserID: 1,
		ScheduleType: database.ScheduleTypeInterval, ScheduleValue: "1h",
		ActivityType: "post", IsActive: true,
	}
	inactive := &database.ActivitySchedule{
		PersonaID: 1, UserID: 1,
		ScheduleType: database.ScheduleTypeInterval, ScheduleValue: "2h",
		ActivityType: "post", IsActive: false,
	}
	db.Create(active)
	db.Create(inactive)
	// gorm 对 false 零值不会覆盖默认值，显式改回
	db.Model(inactive).Update("is_active", false)

	if err := scheduler.LoadActive(); err != nil {
		t.Fatalf("加载活跃调度失败: %v", err)
	}

	if !scheduler.HasJob(active.ID) {
		t.Error("活跃调度应被注册")
	}
	if scheduler.HasJob(inactive.ID) {
		t.Error("停用调度不应被注册")
	}
}
