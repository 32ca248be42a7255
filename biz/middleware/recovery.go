package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/sorathiyaom089/Student-Management-System/pkg/common"
)

// Recovery returns a middleware that recovers from panics and logs the error.
func Recovery() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				hlog.CtxErrorf(ctx, "panic recovered: %v\n%s", err, string(debug.Stack()))

				c.AbortWithStatusJSON(consts.StatusInternalServerError,
					common.Fail(consts.StatusInternalServerError, "internal server error", fmt.Errorf("%v", err)))
			}
		}()

		c.Next(ctx)
	}
}
