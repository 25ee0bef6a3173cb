package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"deepsight/api/internal/config"
	"deepsight/api/internal/detect"
	"deepsight/api/internal/heatmap"
	"deepsight/api/internal/middleware"
	"deepsight/api/internal/models"
	"deepsight/api/internal/quota"
	"deepsight/api/internal/repository"
	"deepsight/api/internal/service"
	"deepsight/api/internal/storage"
)

type HandlerSet struct {
	log             zerolog.Logger
	cfg             *config.AppConfig
	authService     *service.AuthService
	analysisService *service.AnalysisService
	db              *pgxpool.Pool
	cache           *redis.Client
	users           *repository.UserRepository
	reports         *repository.ReportRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) (HandlerSet, error) {
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)

	ledger := quota.NewLedger(quotaRepo, reportRepo, log)
	runner := detect.NewExecRunner()
	dispatcher := detect.NewDispatcher(runner, detect.Params{
		PythonBin:       cfg.Detection.PythonBin,
		OptimizedScript: cfg.Detection.OptimizedScript,
		AdvancedScript:  cfg.Detection.AdvancedScript,
		BasicScript:     cfg.Detection.BasicScript,
		StrategyTimeout: cfg.Detection.StrategyTimeout,
	}, log)

	heatmapStore, err := heatmap.NewFSStore(cfg.Paths.HeatmapsDir)
	if err != nil {
		return HandlerSet{}, err
	}
	var publisher heatmap.Publisher
	if store != nil {
		publisher = store
	}
	heatmaps := heatmap.NewPipeline(
		heatmapStore,
		runner,
		publisher,
		heatmap.Params{
			PythonBin:     cfg.Detection.PythonBin,
			GradCAMScript: cfg.Detection.GradCAMScript,
			TempDir:       cfg.Paths.TempDir,
			Threshold:     cfg.Detection.HeatmapThreshold,
			Timeout:       cfg.Detection.StrategyTimeout,
		},
		log,
	)

	var archiver service.UploadArchiver
	if store != nil {
		archiver = store
	}

	auth := service.NewAuthService(userRepo, cfg.Security.JWTSecret, log)
	analysis := service.NewAnalysisService(reportRepo, ledger, dispatcher, heatmaps, archiver, cache, cfg, log)

	return HandlerSet{
		log:             log,
		cfg:             cfg,
		authService:     auth,
		analysisService: analysis,
		db:              db,
		cache:           cache,
		users:           userRepo,
		reports:         reportRepo,
	}, nil
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.cfg, h.users))
		protected.GET("/me", h.Me)
	}

	analysis := v1.Group("/analysis")
	analysis.Use(middleware.OptionalAuth(h.cfg, h.users))
	analysis.POST("/upload", h.Analyze)
	analysis.GET("/quota", h.QuotaStatus)

	reports := v1.Group("/reports")
	reports.Use(middleware.Auth(h.cfg, h.users))
	reports.GET("", h.ListReports)
	reports.GET("/:id", h.GetReport)
	reports.DELETE("/:id", h.DeleteReport)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.users),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.GET("/reports", h.AdminListReports)
}
