package Persona

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
)

// imageGenerateRequest 生成图片请求
type imageGenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// GenerateImage 为人格生成图片
func GenerateImage(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	var req imageGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	persona, err := Persona_Service.GlobalPersonaService.GetPersona(personaID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	img, err := Persona_Service.GlobalImageService.GenerateImage(persona, req.Prompt)
	if err != nil {
		if errors.Is(err, Persona_Service.ErrGenerationFailed) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "图像生成失败"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成图片失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         img.ID,
		"persona_id": img.PersonaID,
		"prompt":     img.Prompt,
		"is_profile": img.IsProfile,
		"url":        Persona_Service.GlobalImageService.ImageURL(img),
		"created_at": img.CreatedAt,
	})
}

// ListImages 人格的图片列表
func ListImages(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	images, err := Persona_Service.GlobalImageService.ListImages(personaID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询图片列表失败"})
		return
	}

	items := make([]gin.H, 0, len(images))
	for i := range images {
		items = append(items, gin.H{
			"id":         images[i].ID,
			"prompt":     images[i].Prompt,
			"is_profile": images[i].IsProfile,
			"url":        Persona_Service.GlobalImageService.ImageURL(&images[i]),
			"created_at": images[i].CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"images": items})
}

// SetProfileImage 设置头像
func SetProfileImage(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}
	imageID, ok := parseID(c, "image_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	img, err := Persona_Service.GlobalImageService.SetProfileImage(personaID, imageID)
	if err != nil {
		if errors.Is(err, Persona_Service.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "图片不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "设置头像失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         img.ID,
		"is_profile": img.IsProfile,
		"url":        Persona_Service.GlobalImageService.ImageURL(img),
	})
}

// DeleteImage 删除图片
func DeleteImage(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}
	imageID, ok := parseID(c, "image_id")
	if !ok {
		return
	}

	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		return
	}

	if err := Persona_Service.GlobalImageService.DeleteImage(personaID, imageID); err != nil {
		if errors.Is(err, Persona_Service.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "图片不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除图片失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "图片已删除"})
}
