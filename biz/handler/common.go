package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/sorathiyaom089/Student-Management-System/pkg/common"
)

// Ping answers the health check.
func Ping(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"message": "pong"})
}

// RespondData writes data in a 200 envelope.
func RespondData(c *app.RequestContext, data interface{}) {
	c.JSON(consts.StatusOK, common.OK(data))
}

// RespondError writes an error envelope with status both as HTTP status and
// as body code.
func RespondError(c *app.RequestContext, status int, err error) {
	c.JSON(status, common.Fail(status, "", err))
}

func WriteInternalError(c *app.RequestContext, err error) {
	c.JSON(consts.StatusInternalServerError, common.Fail(consts.StatusInternalServerError, "internal error", err))
}
