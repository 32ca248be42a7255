package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/sorathiyaom089/Student-Management-System/pkg/common"
	"github.com/sorathiyaom089/Student-Management-System/pkg/install"
)

// NotInstalledMsg is the message returned while the application is not installed.
const NotInstalledMsg = "application not installed"

// installPaths stay reachable before installation.
var installPaths = []string{"/api/v1/install", "/ping"}

// RequireInstalled returns a middleware that answers 503 for every route
// except the installer and health check until the marker exists.
func RequireInstalled(marker *install.Marker) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if marker.IsInstalled() || allowedBeforeInstall(string(c.Request.URI().Path())) {
			c.Next(ctx)
			return
		}
		hlog.CtxDebugf(ctx, "[Install] rejecting %s: not installed", c.Request.URI().Path())
		c.AbortWithStatusJSON(consts.StatusServiceUnavailable,
			common.Fail(consts.StatusServiceUnavailable, NotInstalledMsg, nil))
	}
}

func allowedBeforeInstall(path string) bool {
	for _, p := range installPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
