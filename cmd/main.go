package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	v1 "kokoronote/api/v1"
	"kokoronote/config"
	"kokoronote/dao"
	"kokoronote/internal/ai"
	myvalidator "kokoronote/internal/validator"
	"kokoronote/middleware"
	"kokoronote/model"
	"kokoronote/service"
)

func main() {
	// 初始化配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "../"
	}
	config.InitConfig(configPath)
	config.InitRedis()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := gorm.Open(mysql.Open(config.GlobalConfig.MySQL.DSN), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	// 自动迁移
	if err := db.AutoMigrate(&model.User{}, &model.Note{}); err != nil {
		panic(err)
	}

	// 外部生成AIクライアントは起動時に1つだけ作り、各サービスへ注入する。
	aiClient := ai.NewClient(config.GlobalConfig.OpenAI, logger)

	// 初始化 DAO 和 Service
	userDAO := dao.NewUserDAO(db)
	noteDAO := dao.NewNoteDAO(db)
	userService := service.NewUserService(userDAO, config.RedisClient)
	noteService := service.NewNoteService(noteDAO, aiClient, logger)
	trendService := service.NewTrendService(noteDAO, aiClient, config.RedisClient, config.GlobalConfig.Trend, logger)
	simulationService := service.NewSimulationService(noteDAO, aiClient,
		config.GlobalConfig.Trend.SimulationWindowDays, config.GlobalConfig.Trend.MaxNotes, logger)

	userAPI := v1.NewUserAPI(userService)
	noteAPI := v1.NewNoteAPI(noteService)
	trendAPI := v1.NewTrendAPI(trendService)
	simulationAPI := v1.NewSimulationAPI(simulationService)

	// 初始化路由
	r := gin.Default()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 注册自定义校验器
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("mobile", myvalidator.IsMobile); err != nil {
			panic(err)
		}
		if err := v.RegisterValidation("notecontent", myvalidator.IsNoteContent); err != nil {
			panic(err)
		}
	}

	// 公共路由
	public := r.Group("/api/v1")
	{
		public.POST("/users/register", userAPI.Register)
		loginLimiter := middleware.RateLimiter(config.RedisClient, "login", 5, time.Minute)
		public.POST("/users/login", loginLimiter, userAPI.Login)
		public.POST("/users/refresh", userAPI.RefreshToken)
	}

	// 私有路由
	private := r.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(userService.Session))
	{
		private.POST("/users/logout", userAPI.Logout)
		private.DELETE("/users", userAPI.DeleteAccount)

		private.POST("/notes", noteAPI.Create)
		private.GET("/notes", noteAPI.List)
		private.GET("/notes/:id", noteAPI.Get)
		private.PATCH("/notes/:id", noteAPI.Update)
		private.DELETE("/notes/:id", noteAPI.Delete)

		// 生成はモデル呼び出しを伴うので別枠でレート制限する。
		trendLimiter := middleware.RateLimiter(config.RedisClient, "trend", 10, time.Minute)
		private.GET("/trends", trendLimiter, trendAPI.Stream)

		private.GET("/simulation", simulationAPI.Opening)
		private.POST("/simulation", simulationAPI.Suggest)
	}

	// 启动服务
	if err := r.Run(config.GlobalConfig.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
