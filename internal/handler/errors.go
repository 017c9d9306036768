package handler

import (
	"errors"
	"net/http"

	"vst-portal/internal/service"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/password"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 业务错误到HTTP状态码的映射
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrAccountDisabled, http.StatusForbidden},
	{service.ErrAdminRequired, http.StatusForbidden},
	{service.ErrCustomerOnly, http.StatusForbidden},

	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrChatNotFound, http.StatusNotFound},
	{service.ErrChatAccessDenied, http.StatusNotFound},
	{service.ErrAvatarNotFound, http.StatusNotFound},

	{service.ErrUserExists, http.StatusBadRequest},
	{service.ErrEmailOrUsernameTaken, http.StatusBadRequest},
	{service.ErrInvalidCurrentPassword, http.StatusBadRequest},
	{service.ErrInvalidUserStatus, http.StatusBadRequest},
	{service.ErrCannotDisableSelf, http.StatusBadRequest},
	{service.ErrInvalidSubscription, http.StatusBadRequest},
	{service.ErrNoSubscription, http.StatusBadRequest},
	{service.ErrChatClosed, http.StatusBadRequest},
	{service.ErrInvalidChatStatus, http.StatusBadRequest},
	{service.ErrEmptyMessage, http.StatusBadRequest},
	{service.ErrEmptySubject, http.StatusBadRequest},
	{service.ErrNoAvatarFile, http.StatusBadRequest},
	{service.ErrInvalidAvatarType, http.StatusBadRequest},
	{service.ErrAvatarTooLarge, http.StatusBadRequest},
	{service.ErrInvalidAvatarName, http.StatusBadRequest},
	{password.ErrTooShort, http.StatusBadRequest},
}

// writeError 已知业务错误返回对应状态码与错误文案，其余记录日志并返回500
func writeError(c *gin.Context, err error, fallback string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			response.Error(c, e.status, e.err.Error())
			return
		}
	}
	logger.Error(fallback,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", logger.GetRequestID(c)),
	)
	response.InternalError(c, fallback, err)
}
