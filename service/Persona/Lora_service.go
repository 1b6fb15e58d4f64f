package Persona

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wasdq1234/alter-ego/database"
	Image_Service "github.com/wasdq1234/alter-ego/service/Image"
	"gorm.io/gorm"
)

// ErrTrainingInProgress 已有训练任务在进行中
var ErrTrainingInProgress = errors.New("LoRA训练正在进行中")

// ErrNotEnoughImages 训练图片不足
var ErrNotEnoughImages = errors.New("至少需要3张图片才能开始LoRA训练")

// 轮询上限：10秒间隔×360次，约1小时。超时后训练状态置为failed，
// 不会永远停在training
const (
	trainingPollInterval    = 10 * time.Second
	trainingPollMaxAttempts = 360
	minTrainingImages       = 3
)

// LoraServiceInterface LoRA微调服务接口
type LoraServiceInterface interface {
	StartTraining(persona *database.Persona, triggerWord string, steps int) (*Image_Service.TrainingJob, error)
	Status(persona *database.Persona) *LoraStatus
}

// GlobalLoraService 全局LoraService实例
var GlobalLoraService LoraServiceInterface

// LoraStatus 训练状态响应
type LoraStatus struct {
	LoraStatus      string `json:"lora_status"`
	LoraModelID     string `json:"lora_model_id,omitempty"`
	LoraTriggerWord string `json:"lora_trigger_word,omitempty"`
}

type loraService struct {
	db *gorm.DB
}

func NewLoraService(db *gorm.DB) (LoraServiceInterface, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}

	service := &loraService{db}
	GlobalLoraService = service
	return service, nil
}

// StartTraining 启动LoRA训练：打包人格图片为zip上传，提交训练任务，
// 然后后台轮询直到任务结束
func (s *loraService) StartTraining(persona *database.Persona, triggerWord string, steps int) (*Image_Service.TrainingJob, error) {
	if persona.LoraStatus == database.LoraStatusTraining {
		return nil, ErrTrainingInProgress
	}
	if Image_Service.GlobalImageGenClient == nil || Image_Service.GlobalStorageService == nil {
		return nil, errors.New("图像生成服务未配置")
	}
	if triggerWord == "" {
		triggerWord = "ALTEREGO"
	}

	zipBytes, err := s.buildTrainingZip(persona.ID)
	if err != nil {
		return nil, err
	}

	// 上传zip取得公开URL
	zipPath := fmt.Sprintf("lora-training/%d/%s.zip", persona.ID, uuid.New().String())
	if err := Image_Service.GlobalStorageService.Upload(zipPath, zipBytes, "application/zip"); err != nil {
		return nil, fmt.Errorf("上传训练包失败: %w", err)
	}
	zipURL := Image_Service.GlobalStorageService.PublicURL(zipPath)

	destination := destinationModel(persona)
	job, err := Image_Service.GlobalImageGenClient.StartTraining(Image_Service.TrainingInput{
		InputImagesURL:   zipURL,
		TriggerWord:      triggerWord,
		DestinationModel: destination,
		Steps:            steps,
	})
	if err != nil {
		return nil, fmt.Errorf("提交训练任务失败: %w", err)
	}

	// 状态置为training
	if err := s.db.Model(&database.Persona{}).Where("id = ?", persona.ID).
		Updates(map[string]interface{}{
			"lora_status":       database.LoraStatusTraining,
			"lora_trigger_word": triggerWord,
		}).Error; err != nil {
		return nil, fmt.Errorf("更新训练状态失败: %w", err)
	}

	go s.pollTraining(persona.ID, job.ID, destination)

	return job, nil
}

// buildTrainingZip 把人格的所有图片打包为zip
func (s *loraService) buildTrainingZip(personaID uint) ([]byte, error) {
	var images []database.PersonaImage
	if err := s.db.Where("persona_id = ?", personaID).Find(&images).Error; err != nil {
		return nil, fmt.Errorf("查询训练图片失败: %w", err)
	}
	if len(images) < minTrainingImages {
		return nil, ErrNotEnoughImages
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for i, img := range images {
		data, err := Image_Service.GlobalStorageService.ReadFile(img.FilePath)
		if err != nil {
			log.Printf("读取训练图片失败 (%s): %v", img.FilePath, err)
			continue
		}
		ext := strings.TrimPrefix(path.Ext(img.FilePath), ".")
		if ext == "" {
			ext = "png"
		}
		w, err := zw.Create(fmt.Sprintf("image_%03d.%s", i, ext))
		if err != nil {
			return nil, fmt.Errorf("构建训练包失败: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("构建训练包失败: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("构建训练包失败: %w", err)
	}

	return buf.Bytes(), nil
}

// destinationModel 目标模型标识（用户可见的名称 + 人格ID）
func destinationModel(persona *database.Persona) string {
	safeName := strings.ToLower(strings.ReplaceAll(persona.Name, " ", "-"))
	if len(safeName) > 30 {
		safeName = safeName[:30]
	}
	return fmt.Sprintf("alter-ego/%s-%d", safeName, persona.ID)
}

// pollTraining 后台轮询训练任务直到结束或超时
func (s *loraService) pollTraining(personaID uint, trainingID, destination string) {
	for attempt := 0; attempt < trainingPollMaxAttempts; attempt++ {
		time.Sleep(trainingPollInterval)

		job, err := Image_Service.GlobalImageGenClient.GetTraining(trainingID)
		if err != nil {
			log.Printf("查询训练状态失败 (training=%s): %v", trainingID, err)
			continue
		}

		switch job.Status {
		case "succeeded":
			modelID := destination
			if job.Version != "" {
				modelID = destination + ":" + job.Version
			}
			s.db.Model(&database.Persona{}).Where("id = ?", personaID).
				Updates(map[string]interface{}{
					"lora_status":   database.LoraStatusReady,
					"lora_model_id": modelID,
				})
			log.Printf("LoRA训练成功 (persona=%d, model=%s)", personaID, modelID)
			return
		case "failed", "canceled":
			s.db.Model(&database.Persona{}).Where("id = ?", personaID).
				Update("lora_status", database.LoraStatusFailed)
			log.Printf("LoRA训练失败 (persona=%d, status=%s): %s", personaID, job.Status, job.Logs)
			return
		}
	}

	// 超时
	s.db.Model(&database.Persona{}).Where("id = ?", personaID).
		Update("lora_status", database.LoraStatusFailed)
	log.Printf("LoRA训练超时 (persona=%d, training=%s)", personaID, trainingID)
}

// Status 读取训练状态
func (s *loraService) Status(persona *database.Persona) *LoraStatus {
	status := persona.LoraStatus
	if status == "" {
		status = database.LoraStatusPending
	}
	return &LoraStatus{
		LoraStatus:      status,
		LoraModelID:     persona.LoraModelID,
		LoraTriggerWord: persona.LoraTriggerWord,
	}
}
