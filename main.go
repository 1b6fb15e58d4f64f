package main

import (
	"log"

	"github.com/wasdq1234/alter-ego/Config"
	"github.com/wasdq1234/alter-ego/Route"
	"github.com/wasdq1234/alter-ego/database"
	Activity_Service "github.com/wasdq1234/alter-ego/service/Activity"
	Auth_Service "github.com/wasdq1234/alter-ego/service/Auth"
	Chat_Service "github.com/wasdq1234/alter-ego/service/Chat"
	Image_Service "github.com/wasdq1234/alter-ego/service/Image"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
	SNS_Service "github.com/wasdq1234/alter-ego/service/SNS"
)

func main() {
	// 初始化配置
	if err := Config.InitConfig(); err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	// 初始化数据库
	if err := database.InitDB(Config.Cfg.DatabasePath); err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}

	// 初始化Redis（失败时降级运行）
	database.InitRedis(Config.Cfg.RedisAddr, Config.Cfg.RedisPassword, Config.Cfg.RedisDB)

	// 外部网关
	if _, err := Image_Service.NewLocalStorageService(Config.Cfg.StorageDir, Config.Cfg.StorageBaseURL); err != nil {
		log.Fatalf("存储初始化失败: %v", err)
	}
	Image_Service.NewReplicateClient(Config.Cfg.ReplicateAPIToken)

	// 业务服务
	db := database.DB
	if _, err := Auth_Service.NewUserService(db); err != nil {
		log.Fatalf("用户服务初始化失败: %v", err)
	}
	if _, err := Persona_Service.NewPersonaService(db); err != nil {
		log.Fatalf("人格服务初始化失败: %v", err)
	}
	if _, err := Persona_Service.NewImageService(db,
		Config.Cfg.OpenAIAPIKey, Config.Cfg.OpenAIBaseURL, Config.Cfg.ImageModel); err != nil {
		log.Fatalf("图片服务初始化失败: %v", err)
	}
	if _, err := Persona_Service.NewLoraService(db); err != nil {
		log.Fatalf("LoRA服务初始化失败: %v", err)
	}
	if _, err := SNS_Service.NewSnsService(db); err != nil {
		log.Fatalf("社交服务初始化失败: %v", err)
	}
	if _, err := Chat_Service.NewChatService(db); err != nil {
		log.Fatalf("聊天服务初始化失败: %v", err)
	}
	Chat_Service.NewCacheService()

	streamer := Chat_Service.NewOpenAIStreamer(
		Config.Cfg.OpenAIAPIKey, Config.Cfg.OpenAIBaseURL, Config.Cfg.OpenAIModel)
	if _, err := Chat_Service.NewChatStreamService(db, streamer); err != nil {
		log.Fatalf("聊天流服务初始化失败: %v", err)
	}

	// 活动引擎与调度器
	completion := Activity_Service.NewOpenAICompletionClient(
		Config.Cfg.OpenAIAPIKey, Config.Cfg.OpenAIBaseURL, Config.Cfg.OpenAIModel)
	engine, err := Activity_Service.NewActivityEngine(db, completion, Persona_Service.GlobalImageService)
	if err != nil {
		log.Fatalf("活动引擎初始化失败: %v", err)
	}

	auto, err := Activity_Service.NewAutoInteractor(db, engine)
	if err != nil {
		log.Fatalf("自动互动初始化失败: %v", err)
	}
	scheduler, err := Activity_Service.NewActivityScheduler(db, engine, auto)
	if err != nil {
		log.Fatalf("调度器初始化失败: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("调度器启动失败: %v", err)
	}
	defer scheduler.Stop()

	// 启动路由
	log.Println("服务器启动中...")
	Route.Run()
}
