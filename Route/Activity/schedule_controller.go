package Activity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wasdq1234/alter-ego/database"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Activity_Service "github.com/wasdq1234/alter-ego/service/Activity"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
)

func scheduleResponse(schedule *database.ActivitySchedule) gin.H {
	return gin.H{
		"id":              schedule.ID,
		"persona_id":      schedule.PersonaID,
		"schedule_type":   schedule.ScheduleType,
		"schedule_value":  schedule.ScheduleValue,
		"activity_type":   schedule.ActivityType,
		"activity_prompt": schedule.ActivityPrompt,
		"is_active":       schedule.IsActive,
		"created_at":      schedule.CreatedAt,
	}
}

// CreateSchedule 创建活动调度，活跃时立即注册定时任务
func CreateSchedule(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	var req database.ScheduleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	// 先校验表达式，非法的直接拒绝
	if err := Activity_Service.ValidateSchedule(req.ScheduleType, req.ScheduleValue); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	schedule := &database.ActivitySchedule{
		PersonaID:      personaID,
		UserID:         userID,
		ScheduleType:   req.ScheduleType,
		ScheduleValue:  req.ScheduleValue,
		ActivityType:   req.ActivityType,
		ActivityPrompt: req.ActivityPrompt,
		IsActive:       isActive,
	}
	if err := database.DB.Create(schedule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建调度失败"})
		return
	}

	if schedule.IsActive {
		if err := Activity_Service.GlobalActivityScheduler.Register(schedule); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusCreated, scheduleResponse(schedule))
}

// ListSchedules 人格的调度列表
func ListSchedules(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	var schedules []database.ActivitySchedule
	if err := database.DB.Where("persona_id = ?", personaID).
		Order("created_at DESC").
		Find(&schedules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询调度列表失败"})
		return
	}

	items := make([]gin.H, 0, len(schedules))
	for i := range schedules {
		items = append(items, scheduleResponse(&schedules[i]))
	}
	c.JSON(http.StatusOK, gin.H{"schedules": items})
}

// loadOwnedSchedule 加载调度并校验归属
func loadOwnedSchedule(c *gin.Context) (*database.ActivitySchedule, bool) {
	scheduleID, ok := parseID(c, "schedule_id")
	if !ok {
		return nil, false
	}

	var schedule database.ActivitySchedule
	if err := database.DB.First(&schedule, scheduleID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "调度不存在"})
		return nil, false
	}

	userID := Auth_Route.CurrentUserID(c)
	if schedule.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "调度不存在"})
		return nil, false
	}
	return &schedule, true
}

// UpdateSchedule 编辑调度，按 is_active 变化同步注册/注销定时任务
func UpdateSchedule(c *gin.Context) {
	schedule, ok := loadOwnedSchedule(c)
	if !ok {
		return
	}

	var req database.ScheduleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	if req.ScheduleType != "" {
		schedule.ScheduleType = req.ScheduleType
	}
	if req.ScheduleValue != "" {
		schedule.ScheduleValue = req.ScheduleValue
	}
	if req.ActivityType != "" {
		schedule.ActivityType = req.ActivityType
	}
	if req.ActivityPrompt != "" {
		schedule.ActivityPrompt = req.ActivityPrompt
	}
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}

	if err := Activity_Service.ValidateSchedule(schedule.ScheduleType, schedule.ScheduleValue); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := database.DB.Save(schedule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新调度失败"})
		return
	}

	// 同步定时任务状态
	if schedule.IsActive {
		if err := Activity_Service.GlobalActivityScheduler.Register(schedule); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		Activity_Service.GlobalActivityScheduler.Unregister(schedule.ID)
	}
	c.JSON(http.StatusOK, scheduleResponse(schedule))
}

// DeleteSchedule 删除调度并注销定时任务
func DeleteSchedule(c *gin.Context) {
	schedule, ok := loadOwnedSchedule(c)
	if !ok {
		return
	}

	if err := database.DB.Delete(schedule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除调度失败"})
		return
	}
	Activity_Service.GlobalActivityScheduler.Unregister(schedule.ID)
	c.JSON(http.StatusOK, gin.H{"message": "调度已删除"})
}
