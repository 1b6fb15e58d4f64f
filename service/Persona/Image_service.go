package Persona

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/wasdq1234/alter-ego/database"
	Image_Service "github.com/wasdq1234/alter-ego/service/Image"
	"gorm.io/gorm"
)

// ErrImageNotFound 图片不存在
var ErrImageNotFound = errors.New("图片不存在")

// ErrGenerationFailed 图像生成服务调用失败
var ErrGenerationFailed = errors.New("图像生成失败")

// ImageServiceInterface 人格图片服务接口
type ImageServiceInterface interface {
	GenerateImage(persona *database.Persona, prompt string) (*database.PersonaImage, error)
	GeneratePostImage(persona *database.Persona, content string) (imageURL, filePath string, err error)
	ListImages(personaID uint) ([]database.PersonaImage, error)
	SetProfileImage(personaID, imageID uint) (*database.PersonaImage, error)
	DeleteImage(personaID, imageID uint) error
	ImageURL(img *database.PersonaImage) string
}

// GlobalImageService 全局ImageService实例
var GlobalImageService ImageServiceInterface

type imageService struct {
	db           *gorm.DB
	openaiClient *openai.Client
	imageModel   string
}

func NewImageService(db *gorm.DB, apiKey, baseURL, imageModel string) (ImageServiceInterface, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if imageModel == "" {
		imageModel = openai.CreateImageModelDallE3
	}

	service := &imageService{
		db:           db,
		openaiClient: openai.NewClientWithConfig(config),
		imageModel:   imageModel,
	}
	GlobalImageService = service
	return service, nil
}

// GenerateImage 生成人格图片：LoRA模型就绪时优先使用，否则走DALL-E；
// LoRA失败时降级到DALL-E。首张图片自动设为头像
func (s *imageService) GenerateImage(persona *database.Persona, prompt string) (*database.PersonaImage, error) {
	useLora := persona.LoraStatus == database.LoraStatusReady && persona.LoraModelID != ""

	var filePath string
	var err error
	if useLora {
		filePath, err = s.generateWithLora(persona, prompt)
		if err != nil {
			log.Printf("LoRA生成失败，降级到DALL-E (persona=%d): %v", persona.ID, err)
			useLora = false
		}
	}
	if !useLora {
		filePath, err = s.generateWithDalle(prompt)
		if err != nil {
			return nil, err
		}
	}

	// 没有头像时自动设为头像
	var existing int64
	s.db.Model(&database.PersonaImage{}).
		Where("persona_id = ? AND is_profile = ?", persona.ID, true).
		Count(&existing)

	img := &database.PersonaImage{
		PersonaID: persona.ID,
		UserID:    persona.UserID,
		FilePath:  filePath,
		Prompt:    prompt,
		IsProfile: existing == 0,
	}
	if err := s.db.Create(img).Error; err != nil {
		return nil, fmt.Errorf("保存图片记录失败: %w", err)
	}
	return img, nil
}

// GeneratePostImage 为帖子配图。走与人格图片相同的生成链路，
// 但不建PersonaImage记录，文件归属帖子并随帖子删除
func (s *imageService) GeneratePostImage(persona *database.Persona, content string) (string, string, error) {
	prompt := "An image that fits this social media post: " + content

	useLora := persona.LoraStatus == database.LoraStatusReady && persona.LoraModelID != ""
	var filePath string
	var err error
	if useLora {
		filePath, err = s.generateWithLora(persona, prompt)
		if err != nil {
			log.Printf("LoRA生成失败，降级到DALL-E (persona=%d): %v", persona.ID, err)
			useLora = false
		}
	}
	if !useLora {
		filePath, err = s.generateWithDalle(prompt)
		if err != nil {
			return "", "", err
		}
	}

	if Image_Service.GlobalStorageService == nil {
		return "", "", errors.New("存储服务未配置")
	}
	return Image_Service.GlobalStorageService.PublicURL(filePath), filePath, nil
}

// generateWithLora LoRA推理并上传存储，返回存储路径
func (s *imageService) generateWithLora(persona *database.Persona, prompt string) (string, error) {
	if Image_Service.GlobalImageGenClient == nil {
		return "", errors.New("图像生成客户端未配置")
	}

	// 提示词里没有触发词时自动前置
	if persona.LoraTriggerWord != "" && !containsWord(prompt, persona.LoraTriggerWord) {
		prompt = persona.LoraTriggerWord + " " + prompt
	}

	urls, err := Image_Service.GlobalImageGenClient.GenerateWithLora(persona.LoraModelID, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: 推理未返回图片", ErrGenerationFailed)
	}

	return uploadFromURL(urls[0])
}

// generateWithDalle DALL-E生成并上传存储，返回存储路径
func (s *imageService) generateWithDalle(prompt string) (string, error) {
	resp, err := s.openaiClient.CreateImage(context.Background(), openai.ImageRequest{
		Model:  s.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   openai.CreateImageSize1024x1024,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("%w: 生成未返回图片", ErrGenerationFailed)
	}

	return uploadFromURL(resp.Data[0].URL)
}

// uploadFromURL 下载远端图片并上传到存储
func uploadFromURL(url string) (string, error) {
	data, err := Image_Service.DownloadImage(url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	filePath := fmt.Sprintf("images/%s.png", uuid.New().String())
	if Image_Service.GlobalStorageService == nil {
		return "", errors.New("存储服务未配置")
	}
	if err := Image_Service.GlobalStorageService.Upload(filePath, data, "image/png"); err != nil {
		return "", fmt.Errorf("上传图片失败: %w", err)
	}
	return filePath, nil
}

// ListImages 获取人格的所有图片
func (s *imageService) ListImages(personaID uint) ([]database.PersonaImage, error) {
	var images []database.PersonaImage
	if err := s.db.Where("persona_id = ?", personaID).
		Order("created_at DESC").
		Find(&images).Error; err != nil {
		return nil, fmt.Errorf("查询图片列表失败: %w", err)
	}
	return images, nil
}

// SetProfileImage 设置头像：先解除旧头像再设置新头像
func (s *imageService) SetProfileImage(personaID, imageID uint) (*database.PersonaImage, error) {
	var img database.PersonaImage
	if err := s.db.Where("id = ? AND persona_id = ?", imageID, personaID).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("查询图片失败: %w", err)
	}

	s.db.Model(&database.PersonaImage{}).
		Where("persona_id = ? AND is_profile = ?", personaID, true).
		Update("is_profile", false)

	if err := s.db.Model(&img).Update("is_profile", true).Error; err != nil {
		return nil, fmt.Errorf("设置头像失败: %w", err)
	}
	img.IsProfile = true
	return &img, nil
}

// DeleteImage 删除图片并清理存储文件。
// 删除的是头像时，自动把最新的剩余图片提升为头像
func (s *imageService) DeleteImage(personaID, imageID uint) error {
	var img database.PersonaImage
	if err := s.db.Where("id = ? AND persona_id = ?", imageID, personaID).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("查询图片失败: %w", err)
	}

	if err := s.db.Delete(&img).Error; err != nil {
		return fmt.Errorf("删除图片失败: %w", err)
	}

	if Image_Service.GlobalStorageService != nil {
		if err := Image_Service.GlobalStorageService.Remove([]string{img.FilePath}); err != nil {
			log.Printf("清理图片文件失败 (%s): %v", img.FilePath, err)
		}
	}

	// 头像被删除时提升最新的剩余图片
	if img.IsProfile {
		var next database.PersonaImage
		err := s.db.Where("persona_id = ?", personaID).
			Order("created_at DESC").
			First(&next).Error
		if err == nil {
			s.db.Model(&next).Update("is_profile", true)
		}
	}

	return nil
}

// ImageURL 图片的公开URL
func (s *imageService) ImageURL(img *database.PersonaImage) string {
	if Image_Service.GlobalStorageService == nil {
		return ""
	}
	return Image_Service.GlobalStorageService.PublicURL(img.FilePath)
}

func containsWord(s, word string) bool {
	return word != "" && strings.Contains(s, word)
}
