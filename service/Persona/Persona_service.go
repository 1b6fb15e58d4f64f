package Persona

import (
	"errors"
	"fmt"
	"log"

	"github.com/wasdq1234/alter-ego/database"
	Image_Service "github.com/wasdq1234/alter-ego/service/Image"
	"gorm.io/gorm"
)

// ErrPersonaNotFound 人格不存在或不属于当前用户
var ErrPersonaNotFound = errors.New("人格不存在")

// 人格系统提示词模板
const systemPromptTemplate = `Your name is %s. Always introduce yourself as %s when asked who you are.

Personality: %s
Speaking style: %s
Background: %s

Always stay in character. Respond naturally as %s would.`

// PersonaServiceInterface 人格服务接口
type PersonaServiceInterface interface {
	CreatePersona(userID uint, req database.PersonaCreateRequest) (*database.Persona, error)
	ListPersonas(userID uint) ([]database.Persona, error)
	GetPersona(personaID, userID uint) (*database.Persona, error)
	UpdatePersona(personaID, userID uint, req database.PersonaUpdateRequest) (*database.Persona, error)
	DeletePersona(personaID, userID uint) ([]uint, error)
	VerifyOwnership(personaID, userID uint) error
	GetProfile(personaID uint) (*PersonaProfile, error)
}

// GlobalPersonaService 全局PersonaService实例
var GlobalPersonaService PersonaServiceInterface

type personaService struct {
	db *gorm.DB
}

func NewPersonaService(db *gorm.DB) (PersonaServiceInterface, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}

	service := &personaService{db}
	GlobalPersonaService = service
	return service, nil
}

// BuildSystemPrompt 由人格设定派生系统提示词
func BuildSystemPrompt(name, personality, speakingStyle, background string) string {
	if background == "" {
		background = "Not specified"
	}
	return fmt.Sprintf(systemPromptTemplate, name, name, personality, speakingStyle, background, name)
}

// CreatePersona 创建人格并生成系统提示词
func (s *personaService) CreatePersona(userID uint, req database.PersonaCreateRequest) (*database.Persona, error) {
	persona := &database.Persona{
		UserID:        userID,
		Name:          req.Name,
		Personality:   req.Personality,
		SpeakingStyle: req.SpeakingStyle,
		Background:    req.Background,
		SystemPrompt:  BuildSystemPrompt(req.Name, req.Personality, req.SpeakingStyle, req.Background),
		LoraStatus:    database.LoraStatusPending,
	}
	if err := s.db.Create(persona).Error; err != nil {
		return nil, fmt.Errorf("创建人格失败: %w", err)
	}
	return persona, nil
}

// ListPersonas 获取用户的所有人格
func (s *personaService) ListPersonas(userID uint) ([]database.Persona, error) {
	var personas []database.Persona
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&personas).Error; err != nil {
		return nil, fmt.Errorf("查询人格列表失败: %w", err)
	}
	return personas, nil
}

// GetPersona 获取人格（校验归属）
func (s *personaService) GetPersona(personaID, userID uint) (*database.Persona, error) {
	var persona database.Persona
	if err := s.db.Where("id = ? AND user_id = ?", personaID, userID).First(&persona).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonaNotFound
		}
		return nil, fmt.Errorf("查询人格失败: %w", err)
	}
	return &persona, nil
}

// VerifyOwnership 校验人格归属
func (s *personaService) VerifyOwnership(personaID, userID uint) error {
	_, err := s.GetPersona(personaID, userID)
	return err
}

// UpdatePersona 编辑人格，合并变更后重新生成系统提示词
func (s *personaService) UpdatePersona(personaID, userID uint, req database.PersonaUpdateRequest) (*database.Persona, error) {
	persona, err := s.GetPersona(personaID, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		persona.Name = req.Name
	}
	if req.Personality != "" {
		persona.Personality = req.Personality
	}
	if req.SpeakingStyle != "" {
		persona.SpeakingStyle = req.SpeakingStyle
	}
	if req.Background != "" {
		persona.Background = req.Background
	}
	persona.SystemPrompt = BuildSystemPrompt(persona.Name, persona.Personality, persona.SpeakingStyle, persona.Background)

	if err := s.db.Save(persona).Error; err != nil {
		return nil, fmt.Errorf("更新人格失败: %w", err)
	}
	return persona, nil
}

// DeletePersona 删除人格并级联清理其图片/帖子的存储文件。
// 返回被删除的调度ID列表，由调用方从调度器中注销
func (s *personaService) DeletePersona(personaID, userID uint) ([]uint, error) {
	if err := s.VerifyOwnership(personaID, userID); err != nil {
		return nil, err
	}

	// 收集待清理的存储文件
	var filePaths []string
	var images []database.PersonaImage
	if err := s.db.Where("persona_id = ?", personaID).Find(&images).Error; err == nil {
		for _, img := range images {
			filePaths = append(filePaths, img.FilePath)
		}
	}
	var posts []database.SnsPost
	if err := s.db.Where("persona_id = ? AND image_file_path != ''", personaID).Find(&posts).Error; err == nil {
		for _, p := range posts {
			filePaths = append(filePaths, p.ImageFilePath)
		}
	}

	// 收集待注销的调度
	var scheduleIDs []uint
	s.db.Model(&database.ActivitySchedule{}).
		Where("persona_id = ?", personaID).
		Pluck("id", &scheduleIDs)

	// 每个删除各自独立，不用多语句事务
	s.db.Where("persona_id = ?", personaID).Delete(&database.PersonaImage{})
	s.db.Where("persona_id = ?", personaID).Delete(&database.SnsPost{})
	s.db.Where("persona_id = ?", personaID).Delete(&database.SnsComment{})
	s.db.Unscoped().Where("persona_id = ?", personaID).Delete(&database.SnsLike{})
	s.db.Unscoped().Where("follower_id = ? OR following_id = ?", personaID, personaID).Delete(&database.SnsFollow{})
	s.db.Where("persona_id = ?", personaID).Delete(&database.ActivitySchedule{})
	if err := s.db.Delete(&database.Persona{}, personaID).Error; err != nil {
		return nil, fmt.Errorf("删除人格失败: %w", err)
	}

	// 清理存储文件（允许失败）
	if Image_Service.GlobalStorageService != nil && len(filePaths) > 0 {
		if err := Image_Service.GlobalStorageService.Remove(filePaths); err != nil {
			log.Printf("清理人格存储文件失败 (persona=%d): %v", personaID, err)
		}
	}

	return scheduleIDs, nil
}

// PersonaProfile 公开主页信息
type PersonaProfile struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	Personality     string `json:"personality"`
	SpeakingStyle   string `json:"speaking_style"`
	Background      string `json:"background"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	PostCount       int64  `json:"post_count"`
	FollowerCount   int64  `json:"follower_count"`
	FollowingCount  int64  `json:"following_count"`
}

// GetProfile 公开主页（帖子数、粉丝数、关注数）
func (s *personaService) GetProfile(personaID uint) (*PersonaProfile, error) {
	var persona database.Persona
	if err := s.db.First(&persona, personaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonaNotFound
		}
		return nil, fmt.Errorf("查询人格失败: %w", err)
	}

	profile := &PersonaProfile{
		ID:            persona.ID,
		Name:          persona.Name,
		Personality:   persona.Personality,
		SpeakingStyle: persona.SpeakingStyle,
		Background:    persona.Background,
	}

	s.db.Model(&database.SnsPost{}).Where("persona_id = ?", personaID).Count(&profile.PostCount)
	s.db.Model(&database.SnsFollow{}).Where("following_id = ?", personaID).Count(&profile.FollowerCount)
	s.db.Model(&database.SnsFollow{}).Where("follower_id = ?", personaID).Count(&profile.FollowingCount)
	profile.ProfileImageURL = ProfileImageURL(s.db, personaID)

	return profile, nil
}

// ProfileImageURL 查询人格头像的公开URL，没有则返回空串
func ProfileImageURL(db *gorm.DB, personaID uint) string {
	var img database.PersonaImage
	err := db.Where("persona_id = ? AND is_profile = ?", personaID, true).First(&img).Error
	if err != nil || Image_Service.GlobalStorageService == nil {
		return ""
	}
	return Image_Service.GlobalStorageService.PublicURL(img.FilePath)
}

// ProfileImageURLs 批量查询头像URL
func ProfileImageURLs(db *gorm.DB, personaIDs []uint) map[uint]string {
	urls := make(map[uint]string)
	if len(personaIDs) == 0 || Image_Service.GlobalStorageService == nil {
		return urls
	}

	var images []database.PersonaImage
	if err := db.Where("persona_id IN ? AND is_profile = ?", personaIDs, true).Find(&images).Error; err != nil {
		return urls
	}
	for _, img := range images {
		urls[img.PersonaID] = Image_Service.GlobalStorageService.PublicURL(img.FilePath)
	}
	return urls
}
