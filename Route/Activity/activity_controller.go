package Activity

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wasdq1234/alter-ego/database"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Activity_Service "github.com/wasdq1234/alter-ego/service/Activity"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
)

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID格式错误"})
		return 0, false
	}
	return uint(id), true
}

// commandRequest 手动触发活动请求
type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// RunCommand 手动触发一次活动
func RunCommand(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	result := Activity_Service.GlobalActivityEngine.RunActivity(
		personaID, req.Command, database.TriggeredByManual, userID)
	c.JSON(http.StatusOK, result)
}

// ListActivityLogs 人格的活动日志（游标分页，可按类型/来源过滤）
func ListActivityLogs(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	query := database.DB.Where("persona_id = ?", personaID).Order("created_at DESC")
	if activityType := c.Query("activity_type"); activityType != "" {
		query = query.Where("activity_type = ?", activityType)
	}
	if triggeredBy := c.Query("triggered_by"); triggeredBy != "" {
		query = query.Where("triggered_by = ?", triggeredBy)
	}
	if cursor := c.Query("cursor"); cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "游标格式错误"})
			return
		}
		query = query.Where("created_at < ?", t)
	}

	var logs []database.ActivityLog
	if err := query.Limit(limit + 1).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询活动日志失败"})
		return
	}

	nextCursor := ""
	if len(logs) > limit {
		logs = logs[:limit]
		nextCursor = logs[len(logs)-1].CreatedAt.Format(time.RFC3339Nano)
	}

	items := make([]gin.H, 0, len(logs))
	for _, l := range logs {
		items = append(items, gin.H{
			"id":            l.ID,
			"activity_type": l.ActivityType,
			"detail":        l.Detail,
			"triggered_by":  l.TriggeredBy,
			"created_at":    l.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": items, "next_cursor": nextCursor})
}
