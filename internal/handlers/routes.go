package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gorm.io/gorm"

	"github.com/safespacehub/plane-tracker-site/internal/config"
	"github.com/safespacehub/plane-tracker-site/internal/fleet"
	"github.com/safespacehub/plane-tracker-site/internal/middleware"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
	"github.com/safespacehub/plane-tracker-site/internal/repository"
)

// Router holds every handler the HTTP surface serves.
type Router struct {
	Auth      *AuthHandler
	Planes    *PlaneHandler
	Devices   *DeviceHandler
	Admin     *AdminHandler
	Sessions  *SessionHandler
	Telemetry *TelemetryHandler
	JWT       *middleware.JWTAuth
	Log       *slog.Logger
}

// NewRouter wires stores, the access gate and services over db.
func NewRouter(db *gorm.DB, jwtAuth *middleware.JWTAuth, reportCfg config.ReportConfig, log *slog.Logger) (*Router, error) {
	users := repository.NewUserRepository(db)
	planes := repository.NewPlaneRepository(db)
	devices := repository.NewDeviceRepository(db)
	sessions := repository.NewSessionRepository(db)
	tx := repository.NewTransactionManager(db)

	gate, err := policy.NewGate(users, log)
	if err != nil {
		return nil, err
	}

	planeSvc := fleet.NewPlaneService(planes, devices, tx, gate, log)
	deviceSvc := fleet.NewDeviceService(devices, planes, sessions, tx, gate, log)
	sessionSvc := fleet.NewSessionService(devices, planes, sessions, tx, gate, log, reportCfg.RecentLimit, reportCfg.Location())
	ledger := fleet.NewLedger(devices, sessions, tx, log)

	return &Router{
		Auth:      NewAuthHandler(users, jwtAuth, gate),
		Planes:    NewPlaneHandler(planeSvc),
		Devices:   NewDeviceHandler(deviceSvc),
		Admin:     NewAdminHandler(users, deviceSvc, gate),
		Sessions:  NewSessionHandler(sessionSvc),
		Telemetry: NewTelemetryHandler(ledger),
		JWT:       jwtAuth,
		Log:       log,
	}, nil
}

func (rt *Router) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(rt.Log), middleware.Metrics(), middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", rt.Auth.Register)
			auth.POST("/login", rt.Auth.Login)
			auth.GET("/me", rt.JWT.Middleware(), rt.Auth.Me)
		}

		// Devices authenticate with their own token
		v1.POST("/telemetry", rt.Telemetry.Ingest)

		protected := v1.Group("")
		protected.Use(rt.JWT.Middleware())
		{
			planes := protected.Group("/planes")
			{
				planes.GET("", rt.Planes.List)
				planes.POST("", rt.Planes.Create)
				planes.GET("/:id", rt.Planes.Get)
				planes.PUT("/:id", rt.Planes.Update)
				planes.DELETE("/:id", rt.Planes.Delete)
			}

			devices := protected.Group("/devices")
			{
				devices.GET("", rt.Devices.List)
				devices.GET("/:token", rt.Devices.Get)
				devices.PATCH("/:token", rt.Devices.Update)
				devices.DELETE("/:token", rt.Devices.Delete)
			}

			sessions := protected.Group("/sessions")
			{
				sessions.GET("", rt.Sessions.List)
				sessions.POST("/:id/close", rt.Sessions.Close)
			}

			protected.GET("/stats/dashboard", rt.Sessions.Dashboard)
			protected.GET("/export/sessions.csv", rt.Sessions.Export)

			admin := protected.Group("/admin")
			{
				admin.GET("/users", rt.Admin.ListUsers)
				admin.GET("/devices", rt.Admin.ListDevices)
				admin.POST("/devices/:token/claim", rt.Admin.Claim)
				admin.POST("/devices/:token/release", rt.Admin.Release)
			}
		}
	}

	return r
}
