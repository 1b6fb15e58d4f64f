package database

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB(path string) error {
	var err error
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}

	// 自动迁移表结构
	err = DB.AutoMigrate(
		&User{},
		&Persona{},
		&PersonaImage{},
		&SnsPost{},
		&SnsComment{},
		&SnsLike{},
		&SnsFollow{},
		&ActivitySchedule{},
		&ActivityLog{},
		&ChatThread{},
		&ChatMessage{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	log.Println("数据库连接成功")
	return nil
}
