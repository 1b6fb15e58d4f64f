package Config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`
	SecretKey    string `mapstructure:"SECRET_KEY"`
	TokenExpiry  int    `mapstructure:"TOKEN_EXPIRY_MINUTES"`

	// LLM 接口配置
	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`
	ImageModel    string `mapstructure:"OPENAI_IMAGE_MODEL"`

	// Replicate 微调服务配置
	ReplicateAPIToken string `mapstructure:"REPLICATE_API_TOKEN"`

	// 对象存储配置
	StorageDir     string `mapstructure:"STORAGE_DIR"`
	StorageBaseURL string `mapstructure:"STORAGE_BASE_URL"`

	// Redis 配置
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
}

var Cfg Config

func InitConfig() error {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// 设置默认值
	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("DATABASE_PATH", "alter_ego.db")
	viper.SetDefault("TOKEN_EXPIRY_MINUTES", 1440) // 24小时
	viper.SetDefault("OPENAI_MODEL", "gpt-4o")
	viper.SetDefault("OPENAI_IMAGE_MODEL", "dall-e-3")
	viper.SetDefault("STORAGE_DIR", "./storage")
	viper.SetDefault("STORAGE_BASE_URL", "http://localhost:8000/static")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时继续使用环境变量
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}

	// 必须配置项验证
	if Cfg.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY 必须配置")
	}
	if Cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY 必须配置")
	}
	return nil
}
