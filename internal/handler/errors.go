package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindBadRequest:   http.StatusBadRequest,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindForbidden:    http.StatusForbidden,
	service.KindConflict:     http.StatusConflict,
	service.KindNotFound:     http.StatusNotFound,
	service.KindInternal:     http.StatusInternalServerError,
}

// StatusOf maps a service error to its HTTP status.
func StatusOf(err error) int {
	if s, ok := kindStatus[service.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": message}. Internal causes are
// logged and never sent to the client.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("route", c.Path()), zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": service.MessageOf(err)})
}
