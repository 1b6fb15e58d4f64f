package Activity

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/wasdq1234/alter-ego/database"
	"gorm.io/gorm"
)

// ErrInvalidSchedule 调度表达式非法
var ErrInvalidSchedule = errors.New("调度表达式非法")

// 自动互动巡查间隔
const autoInteractInterval = time.Hour

var intervalPattern = regexp.MustCompile(`^(\d+)\s*([smhd])$`)

// ParseInterval 解析 "<N><s|m|h|d>" 形式的间隔表达式
func ParseInterval(value string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("%w: 间隔应为 <数字><s|m|h|d>，收到 %q", ErrInvalidSchedule, value)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: 间隔必须为正数，收到 %q", ErrInvalidSchedule, value)
	}

	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("%w: 未知的时间单位 %q", ErrInvalidSchedule, m[2])
}

// ValidateSchedule 校验调度配置
func ValidateSchedule(scheduleType, scheduleValue string) error {
	switch scheduleType {
	case database.ScheduleTypeCron:
		if !gronx.New().IsValid(scheduleValue) {
			return fmt.Errorf("%w: crontab 表达式非法 %q", ErrInvalidSchedule, scheduleValue)
		}
		return nil
	case database.ScheduleTypeInterval:
		_, err := ParseInterval(scheduleValue)
		return err
	}
	return fmt.Errorf("%w: 未知的调度类型 %q", ErrInvalidSchedule, scheduleType)
}

// ActivityScheduler 活动调度器。每个活跃调度一个定时任务，
// 外加一个每小时的自动互动巡查
type ActivityScheduler struct {
	db     *gorm.DB
	engine ActivityRunner
	auto   *AutoInteractor

	mu       sync.Mutex
	jobs     map[uint]chan struct{} // schedule_id → 停止信号
	autoStop chan struct{}
	started  bool
}

// GlobalActivityScheduler 全局调度器实例
var GlobalActivityScheduler *ActivityScheduler

func NewActivityScheduler(db *gorm.DB, engine ActivityRunner, auto *AutoInteractor) (*ActivityScheduler, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}
	if engine == nil {
		return nil, errors.New("活动引擎不能为空")
	}

	scheduler := &ActivityScheduler{
		db:     db,
		engine: engine,
		auto:   auto,
		jobs:   make(map[uint]chan struct{}),
	}
	GlobalActivityScheduler = scheduler
	return scheduler, nil
}

// Register 注册（或替换）一个调度的定时任务。
// 同一调度重复注册时先停掉旧任务，保证每个调度只有一个任务
func (s *ActivityScheduler) Register(schedule *database.ActivitySchedule) error {
	if err := ValidateSchedule(schedule.ScheduleType, schedule.ScheduleValue); err != nil {
		return err
	}

	s.mu.Lock()
	if old, ok := s.jobs[schedule.ID]; ok {
		close(old)
	}
	stop := make(chan struct{})
	s.jobs[schedule.ID] = stop
	s.mu.Unlock()

	switch schedule.ScheduleType {
	case database.ScheduleTypeInterval:
		interval, _ := ParseInterval(schedule.ScheduleValue)
		go s.runIntervalJob(*schedule, interval, stop)
	case database.ScheduleTypeCron:
		go s.runCronJob(*schedule, stop)
	}

	log.Printf("调度任务已注册 (schedule=%d, persona=%d, %s=%s)",
		schedule.ID, schedule.PersonaID, schedule.ScheduleType, schedule.ScheduleValue)
	return nil
}

// Unregister 注销一个调度的定时任务
func (s *ActivityScheduler) Unregister(scheduleID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.jobs[scheduleID]; ok {
		close(stop)
		delete(s.jobs, scheduleID)
		log.Printf("调度任务已注销 (schedule=%d)", scheduleID)
	}
}

// HasJob 某调度是否有活跃任务
func (s *ActivityScheduler) HasJob(scheduleID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[scheduleID]
	return ok
}

// JobCount 活跃任务数
func (s *ActivityScheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// LoadActive 从数据库加载全部活跃调度。单条失败只记录不中断
func (s *ActivityScheduler) LoadActive() error {
	var schedules []database.ActivitySchedule
	if err := s.db.Where("is_active = ?", true).Find(&schedules).Error; err != nil {
		return fmt.Errorf("加载活跃调度失败: %w", err)
	}

	for i := range schedules {
		if err := s.Register(&schedules[i]); err != nil {
			log.Printf("注册调度失败 (schedule=%d): %v", schedules[i].ID, err)
		}
	}
	log.Printf("已加载 %d 个活跃调度", len(schedules))
	return nil
}

// Start 加载活跃调度并启动每小时的自动互动巡查
func (s *ActivityScheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.autoStop = make(chan struct{})
	autoStop := s.autoStop
	s.mu.Unlock()

	if err := s.LoadActive(); err != nil {
		return err
	}

	if s.auto != nil {
		go s.runAutoInteract(autoStop)
	}
	return nil
}

// Stop 停止所有定时任务
func (s *ActivityScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, stop := range s.jobs {
		close(stop)
		delete(s.jobs, id)
	}
	if s.autoStop != nil {
		close(s.autoStop)
		s.autoStop = nil
	}
	s.started = false
}

func (s *ActivityScheduler) runIntervalJob(schedule database.ActivitySchedule, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.fire(schedule)
		}
	}
}

func (s *ActivityScheduler) runCronJob(schedule database.ActivitySchedule, stop chan struct{}) {
	for {
		next, err := gronx.NextTickAfter(schedule.ScheduleValue, time.Now(), false)
		if err != nil {
			log.Printf("计算下次触发时间失败 (schedule=%d): %v", schedule.ID, err)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			s.fire(schedule)
		}
	}
}

// fire 触发一次调度活动
func (s *ActivityScheduler) fire(schedule database.ActivitySchedule) {
	command := schedule.ActivityPrompt
	if command == "" {
		command = fmt.Sprintf("Perform a %s activity as scheduled.", schedule.ActivityType)
	}
	s.engine.RunActivity(schedule.PersonaID, command, database.TriggeredBySchedule, schedule.UserID)
}

func (s *ActivityScheduler) runAutoInteract(stop chan struct{}) {
	ticker := time.NewTicker(autoInteractInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.auto.Run()
		}
	}
}
