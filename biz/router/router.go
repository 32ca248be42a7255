package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/sorathiyaom089/Student-Management-System/biz/handler"
	"github.com/sorathiyaom089/Student-Management-System/biz/middleware"
	"github.com/sorathiyaom089/Student-Management-System/pkg/install"
)

// Register configures middleware and HTTP routes of the installer.
func Register(r *server.Hertz, marker *install.Marker, h *handler.InstallHandler) {
	r.Use(middleware.Recovery(), middleware.Logging(), middleware.RequireInstalled(marker))

	r.GET("/ping", handler.Ping)

	v1 := r.Group("/api/v1")

	inst := v1.Group("/install")
	inst.GET("/status", h.Status)
	inst.GET("/check", h.Check)
	v1.POST("/install", h.Install)

	v1.GET("/system/settings", h.Settings)
}
