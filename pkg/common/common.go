package common

import (
	"context"
	"net/http"
)

// CommonResponse is a lightweight response wrapper used by HTTP handlers.
type CommonResponse struct {
	Code  int         `json:"code"`
	Msg   string      `json:"msg,omitempty"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// OK wraps data in a 200 response.
func OK(data interface{}) CommonResponse {
	return CommonResponse{Code: http.StatusOK, Msg: http.StatusText(http.StatusOK), Data: data}
}

// Fail builds an error response for status. err may be nil.
func Fail(status int, msg string, err error) CommonResponse {
	resp := CommonResponse{Code: status, Msg: msg}
	if err != nil {
		resp.Error = err.Error()
	}
	if resp.Msg == "" {
		resp.Msg = http.StatusText(status)
	}
	return resp
}

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID stores the request id into context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request id from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
