// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventariate/backend-go/internal/api/handlers"
	"github.com/andresuchdata/inventariate/backend-go/internal/api/middleware"
	"github.com/andresuchdata/inventariate/backend-go/internal/service"
)

// Services are the collaborators behind the routes. Runs and Drive are
// optional; their routes are only mounted when set.
type Services struct {
	Inventory *service.InventoryService
	Runs      handlers.RunLister
	Drive     handlers.DriveBrowser
}

type RouterOptions struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

func NewRouter(services *Services, opts RouterOptions) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger("/health"))
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(opts.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services == nil {
		return router
	}

	if services.Inventory != nil {
		h := handlers.NewInventoryHandler(services.Inventory, opts.MaxUploadBytes)
		apiGroup.POST("/uploads", h.Upload)
		apiGroup.GET("/template", h.Template)
		apiGroup.GET("/history", h.History)

		sessions := apiGroup.Group("/sessions/:key")
		{
			sessions.GET("/dashboard", h.Dashboard)
			sessions.GET("/report", h.Report)
			sessions.GET("/processed.xlsx", h.ProcessedWorkbook)
			sessions.DELETE("", h.DeleteSession)
		}

		if services.Drive != nil {
			apiGroup.POST("/drive/uploads", h.DriveUpload)
		}
	}

	if services.Drive != nil {
		apiGroup.GET("/drive/files", handlers.NewDriveHandler(services.Drive).ListFiles)
	}

	if services.Runs != nil {
		runs := handlers.NewRunsHandler(services.Runs)
		apiGroup.GET("/runs", runs.List)
		apiGroup.GET("/runs/:key", runs.Get)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
