package Persona

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
)

// loraTrainRequest 启动LoRA训练请求
type loraTrainRequest struct {
	TriggerWord string `json:"trigger_word" binding:"omitempty,max=50"`
	Steps       int    `json:"steps" binding:"omitempty,min=100,max=4000"`
}

// StartLoraTraining 启动LoRA训练
func StartLoraTraining(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	var req loraTrainRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	persona, err := Persona_Service.GlobalPersonaService.GetPersona(personaID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	job, err := Persona_Service.GlobalLoraService.StartTraining(persona, req.TriggerWord, req.Steps)
	if err != nil {
		switch {
		case errors.Is(err, Persona_Service.ErrTrainingInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "训练正在进行中"})
		case errors.Is(err, Persona_Service.ErrNotEnoughImages):
			c.JSON(http.StatusBadRequest, gin.H{"error": "至少需要3张图片才能开始训练"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "提交训练任务失败"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"training_id": job.ID,
		"status":      job.Status,
	})
}

// GetLoraStatus 查询LoRA训练状态
func GetLoraStatus(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	persona, err := Persona_Service.GlobalPersonaService.GetPersona(personaID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	c.JSON(http.StatusOK, Persona_Service.GlobalLoraService.Status(persona))
}
