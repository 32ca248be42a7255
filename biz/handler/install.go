package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/sorathiyaom089/Student-Management-System/biz/service"
	"github.com/sorathiyaom089/Student-Management-System/pkg/install"
	"github.com/sorathiyaom089/Student-Management-System/pkg/lock"
)

// InstallHandler exposes the installer over HTTP.
type InstallHandler struct {
	svc *service.Installer
}

func NewInstallHandler(svc *service.Installer) *InstallHandler {
	return &InstallHandler{svc: svc}
}

// Status handles GET /api/v1/install/status.
func (h *InstallHandler) Status(ctx context.Context, c *app.RequestContext) {
	status, err := h.svc.Status(ctx)
	if err != nil {
		hlog.CtxErrorf(ctx, "[Installer] read status: %v", err)
		WriteInternalError(c, err)
		return
	}
	RespondData(c, status)
}

// Check handles GET /api/v1/install/check.
func (h *InstallHandler) Check(ctx context.Context, c *app.RequestContext) {
	RespondData(c, h.svc.Check(ctx))
}

// Install handles POST /api/v1/install.
func (h *InstallHandler) Install(ctx context.Context, c *app.RequestContext) {
	rec, err := h.svc.Install(ctx)
	switch {
	case err == nil:
		RespondData(c, rec)
	case errors.Is(err, install.ErrAlreadyInstalled):
		RespondError(c, consts.StatusConflict, err)
	case errors.Is(err, service.ErrDatabaseUnreachable), errors.Is(err, lock.ErrTimeout):
		RespondError(c, consts.StatusServiceUnavailable, err)
	default:
		hlog.CtxErrorf(ctx, "[Installer] install failed: %v", err)
		WriteInternalError(c, err)
	}
}

// Settings handles GET /api/v1/system/settings.
func (h *InstallHandler) Settings(ctx context.Context, c *app.RequestContext) {
	settings, err := h.svc.Settings(ctx)
	if err != nil {
		WriteInternalError(c, err)
		return
	}
	RespondData(c, settings)
}
