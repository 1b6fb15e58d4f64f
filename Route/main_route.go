package Route

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wasdq1234/alter-ego/Config"
	Activity_Route "github.com/wasdq1234/alter-ego/Route/Activity"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Chat_Route "github.com/wasdq1234/alter-ego/Route/Chat"
	Persona_Route "github.com/wasdq1234/alter-ego/Route/Persona"
	SNS_Route "github.com/wasdq1234/alter-ego/Route/SNS"
)

// SetupRouter 组装全部路由
func SetupRouter() *gin.Engine {
	r := gin.Default()

	// 配置CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:8080", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           120 * time.Hour,
		AllowOriginFunc: func(origin string) bool {
			return true
		},
	}))

	// 本地存储的静态文件服务（图片、训练包）
	r.Static("/static", Config.Cfg.StorageDir)

	api := r.Group("/api")

	// 公开路由
	api.POST("/register", Auth_Route.Register)
	api.POST("/login", Auth_Route.Login)
	api.POST("/logout", Auth_Route.Logout)

	// 聊天流式端点：认证走query里的token
	r.GET("/ws/chat/:thread_id", Chat_Route.ChatWebSocket)

	// 需要认证的路由
	auth := api.Group("/")
	auth.Use(Auth_Route.AuthMiddleware())

	// 用户相关
	{
		auth.GET("/me", Auth_Route.Me)
	}

	// 人格相关
	{
		auth.POST("/personas", Persona_Route.CreatePersona)
		auth.GET("/personas", Persona_Route.ListPersonas)
		auth.GET("/personas/:persona_id", Persona_Route.GetPersona)
		auth.PUT("/personas/:persona_id", Persona_Route.UpdatePersona)
		auth.DELETE("/personas/:persona_id", Persona_Route.DeletePersona)
		auth.GET("/personas/:persona_id/profile", Persona_Route.GetProfile)

		auth.POST("/personas/:persona_id/images", Persona_Route.GenerateImage)
		auth.GET("/personas/:persona_id/images", Persona_Route.ListImages)
		auth.PUT("/personas/:persona_id/images/:image_id/profile", Persona_Route.SetProfileImage)
		auth.DELETE("/personas/:persona_id/images/:image_id", Persona_Route.DeleteImage)

		auth.POST("/personas/:persona_id/lora/train", Persona_Route.StartLoraTraining)
		auth.GET("/personas/:persona_id/lora/status", Persona_Route.GetLoraStatus)
	}

	// 社交相关
	{
		auth.GET("/sns/feed", SNS_Route.GlobalFeed)
		auth.GET("/sns/feed/:persona_id/following", SNS_Route.FollowingFeed)
		auth.POST("/sns/posts", SNS_Route.CreatePost)
		auth.GET("/sns/posts/:post_id", SNS_Route.GetPost)
		auth.DELETE("/sns/posts/:post_id", SNS_Route.DeletePost)
		auth.POST("/sns/posts/:post_id/comments", SNS_Route.CreateComment)
		auth.GET("/sns/posts/:post_id/comments", SNS_Route.GetComments)
		auth.DELETE("/sns/comments/:comment_id", SNS_Route.DeleteComment)
		auth.POST("/sns/posts/:post_id/like", SNS_Route.ToggleLike)
		auth.GET("/sns/posts/:post_id/likes", SNS_Route.GetLikes)
		auth.POST("/sns/personas/:persona_id/follow", SNS_Route.Follow)
		auth.DELETE("/sns/personas/:persona_id/follow", SNS_Route.Unfollow)
		auth.GET("/sns/personas/:persona_id/followers", SNS_Route.GetFollowers)
		auth.GET("/sns/personas/:persona_id/following", SNS_Route.GetFollowing)
	}

	// 活动相关
	{
		auth.POST("/personas/:persona_id/command", Activity_Route.RunCommand)
		auth.GET("/personas/:persona_id/activity-logs", Activity_Route.ListActivityLogs)
		auth.POST("/personas/:persona_id/schedules", Activity_Route.CreateSchedule)
		auth.GET("/personas/:persona_id/schedules", Activity_Route.ListSchedules)
		auth.PUT("/schedules/:schedule_id", Activity_Route.UpdateSchedule)
		auth.DELETE("/schedules/:schedule_id", Activity_Route.DeleteSchedule)
	}

	// 聊天相关
	{
		auth.POST("/chat/threads", Chat_Route.CreateThread)
		auth.GET("/chat/threads", Chat_Route.ListThreads)
		auth.GET("/chat/threads/:thread_id/messages", Chat_Route.GetMessages)
		auth.DELETE("/chat/threads/:thread_id", Chat_Route.DeleteThread)
		auth.GET("/chat/threads/:thread_id/recover", Chat_Route.RecoverStream)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

// Run 启动HTTP服务
func Run() {
	r := SetupRouter()
	if err := r.Run(":" + Config.Cfg.ServerPort); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}
