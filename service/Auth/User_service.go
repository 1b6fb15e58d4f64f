package Auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/wasdq1234/alter-ego/database"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService 用户服务接口
type UserService interface {
	CreateUser(req database.RegisterRequest) (*database.User, error)
	AuthenticateUser(username, password string) (*database.User, error)
	GetUserByID(id uint) (*database.User, error)
}

// GlobalUserService 全局UserService实例
var GlobalUserService UserService

// 用户服务实现
type userService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) (UserService, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}

	service := &userService{db}
	GlobalUserService = service
	return service, nil
}

// CreateUser 创建用户
func (s *userService) CreateUser(req database.RegisterRequest) (*database.User, error) {
	var existingUser database.User
	err := s.db.Where("username = ?", req.Username).First(&existingUser).Error
	if err == nil {
		return nil, errors.New("用户名已存在")
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		Username:     req.Username,
		PasswordHash: hashedPassword,
		Email:        req.Email,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	return user, nil
}

// AuthenticateUser 校验用户名和密码
func (s *userService) AuthenticateUser(username, password string) (*database.User, error) {
	var user database.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("用户名或密码错误")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, errors.New("用户名或密码错误")
	}

	// 更新最后登录时间（允许失败）
	s.db.Model(&user).Update("last_login", time.Now())

	return &user, nil
}

// GetUserByID 根据ID获取用户
func (s *userService) GetUserByID(id uint) (*database.User, error) {
	var user database.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// HashPassword 将密码哈希化
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 校验密码
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
