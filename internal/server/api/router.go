package api

import (
	"shared/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the echo router with all routes
// and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	e.Use(RequestLogger())

	// Health & metrics
	e.GET("/api/health", handler.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Upload
	e.POST("/api/upload", handler.HandleUpload)

	// Share info & storage usage
	e.GET("/api/info/:code", handler.HandleInfo)
	e.GET("/api/storage", handler.HandleStorage)

	// Downloads: whole share as ZIP, single file by name, single file
	// by upload-order index
	e.GET("/api/download/:code", handler.HandleDownloadAll)
	e.GET("/api/download/:code/:filename", handler.HandleDownloadByName)
	e.GET("/api/download/:code/file/:index", handler.HandleDownloadByIndex)

	return e
}
