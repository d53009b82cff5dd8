package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/farzanshibu/challenge-synergy-hub/config"
	"github.com/farzanshibu/challenge-synergy-hub/controllers"
	"github.com/farzanshibu/challenge-synergy-hub/middleware"
	"github.com/farzanshibu/challenge-synergy-hub/store"
	"github.com/farzanshibu/challenge-synergy-hub/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, stores *store.Manager, feed store.ChangeFeed) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")

	r.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	// OBS loads this page as a browser source with ?token=
	r.GET("/overlay", func(c *gin.Context) {
		c.File("./static/overlay.html")
	})

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	challengeController := controllers.NewChallengeController(stores)
	overlayController := controllers.NewOverlayController(stores)
	eventsController := controllers.NewEventsController(stores, feed)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/challenges", challengeController.List)
	protected.POST("/challenges", challengeController.Create)
	protected.PUT("/challenges/:id", challengeController.Update)
	protected.DELETE("/challenges/:id", challengeController.Delete)
	protected.POST("/challenges/:id/increment", challengeController.Increment)
	protected.POST("/challenges/:id/decrement", challengeController.Decrement)
	protected.POST("/challenges/:id/reset", challengeController.Reset)
	protected.POST("/challenges/:id/activate", challengeController.Activate)

	protected.GET("/overlay/settings", overlayController.GetSettings)
	protected.GET("/overlay/settings/all", overlayController.ListSettings)
	protected.PUT("/overlay/settings", overlayController.SaveSettings)
	protected.POST("/overlay/settings/reset", overlayController.ResetSettings)
	protected.POST("/overlay/assets/:kind/:slot", overlayController.UploadAsset)
	protected.DELETE("/overlay/assets/:kind/:slot", overlayController.DeleteAsset)

	// SSE stream; not rate limited, overlays reconnect aggressively
	api.GET("/events", middleware.AuthRequired(), eventsController.Stream)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}
