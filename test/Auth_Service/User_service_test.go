package Auth_Service

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/wasdq1234/alter-ego/database"
	Auth "github.com/wasdq1234/alter-ego/service/Auth"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库（使用 SQLite 内存数据库）
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("无法创建测试数据库: %v", err)
	}

	if err := db.AutoMigrate(&database.User{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func setupUserService(t *testing.T) Auth.UserService {
	service, err := Auth.NewUserService(setupTestDB(t))
	if err != nil {
		t.Fatalf("创建用户服务失败: %v", err)
	}
	return service
}

// TestCreateUser 测试创建用户
func TestCreateUser(t *testing.T) {
	service := setupUserService(t)

	tests := []struct {
		name        string
		request     database.RegisterRequest
		wantErr     bool
		errContains string
	}{
		{
			name: "成功创建用户",
			request: database.RegisterRequest{
				Username: "testuser",
				Password: "password123",
				Email:    "test@example.com",
			},
			wantErr: false,
		},
		{
			name: "用户名已存在",
			request: database.RegisterRequest{
				Username: "testuser",
				Password: "password456",
				Email:    "test2@example.com",
			},
			wantErr:     true,
			errContains: "用户名已存在",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := service.CreateUser(tt.request)

			if tt.wantErr {
				if err == nil {
					t.Errorf("CreateUser() 期望返回错误，但没有")
					return
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("错误消息应包含 '%s', 实际: %v", tt.errContains, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("CreateUser() 失败: %v", err)
			}
			if user.Username != tt.request.Username {
				t.Errorf("用户名不符: %s", user.Username)
			}
			// 密码不能明文存储
			if user.PasswordHash == tt.request.Password {
				t.Error("密码不应明文存储")
			}
		})
	}
}

// TestAuthenticateUser 测试登录校验
func TestAuthenticateUser(t *testing.T) {
	service := setupUserService(t)

	_, err := service.CreateUser(database.RegisterRequest{
		Username: "loginuser",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}

	if _, err := service.AuthenticateUser("loginuser", "secret123"); err != nil {
		t.Errorf("正确密码登录失败: %v", err)
	}
	if _, err := service.AuthenticateUser("loginuser", "wrong"); err == nil {
		t.Error("错误密码应登录失败")
	}
	if _, err := service.AuthenticateUser("nobody", "secret123"); err == nil {
		t.Error("不存在的用户应登录失败")
	}
}

// TestPasswordHash 哈希与校验
func TestPasswordHash(t *testing.T) {
	hash, err := Auth.HashPassword("mypassword")
	if err != nil {
		t.Fatalf("哈希失败: %v", err)
	}
	if !Auth.CheckPassword("mypassword", hash) {
		t.Error("正确密码校验失败")
	}
	if Auth.CheckPassword("other", hash) {
		t.Error("错误密码不应通过校验")
	}
}
