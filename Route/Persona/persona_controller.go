package Persona

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wasdq1234/alter-ego/database"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Activity_Service "github.com/wasdq1234/alter-ego/service/Activity"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
)

// parseID 解析路径参数里的数字ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID格式错误"})
		return 0, false
	}
	return uint(id), true
}

// personaResponse 人格响应（带头像URL）
func personaResponse(persona *database.Persona) gin.H {
	return gin.H{
		"id":             persona.ID,
		"name":           persona.Name,
		"personality":    persona.Personality,
		"speaking_style": persona.SpeakingStyle,
		"background":     persona.Background,
		"system_prompt":  persona.SystemPrompt,
		"lora_status":    persona.LoraStatus,
		"created_at":     persona.CreatedAt,
	}
}

// CreatePersona 创建人格
func CreatePersona(c *gin.Context) {
	var req database.PersonaCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	persona, err := Persona_Service.GlobalPersonaService.CreatePersona(userID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建人格失败"})
		return
	}
	c.JSON(http.StatusCreated, personaResponse(persona))
}

// ListPersonas 当前用户的人格列表
func ListPersonas(c *gin.Context) {
	userID := Auth_Route.CurrentUserID(c)
	personas, err := Persona_Service.GlobalPersonaService.ListPersonas(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询人格列表失败"})
		return
	}

	items := make([]gin.H, 0, len(personas))
	for i := range personas {
		items = append(items, personaResponse(&personas[i]))
	}
	c.JSON(http.StatusOK, gin.H{"personas": items})
}

// GetPersona 人格详情
func GetPersona(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	persona, err := Persona_Service.GlobalPersonaService.GetPersona(personaID, userID)
	if err != nil {
		if errors.Is(err, Persona_Service.ErrPersonaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询人格失败"})
		return
	}
	c.JSON(http.StatusOK, personaResponse(persona))
}

// UpdatePersona 编辑人格
func UpdatePersona(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	var req database.PersonaUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	persona, err := Persona_Service.GlobalPersonaService.UpdatePersona(personaID, userID, req)
	if err != nil {
		if errors.Is(err, Persona_Service.ErrPersonaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新人格失败"})
		return
	}
	c.JSON(http.StatusOK, personaResponse(persona))
}

// DeletePersona 删除人格，并注销其全部调度任务
func DeletePersona(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	scheduleIDs, err := Persona_Service.GlobalPersonaService.DeletePersona(personaID, userID)
	if err != nil {
		if errors.Is(err, Persona_Service.ErrPersonaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除人格失败"})
		return
	}

	if Activity_Service.GlobalActivityScheduler != nil {
		for _, id := range scheduleIDs {
			Activity_Service.GlobalActivityScheduler.Unregister(id)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "人格已删除"})
}

// GetProfile 人格公开主页（无需归属校验）
func GetProfile(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	profile, err := Persona_Service.GlobalPersonaService.GetProfile(personaID)
	if err != nil {
		if errors.Is(err, Persona_Service.ErrPersonaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询主页失败"})
		return
	}
	c.JSON(http.StatusOK, profile)
}
