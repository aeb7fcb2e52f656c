package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/requestctx"
)

type response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status   int               `json:"status"`
	Message  string            `json:"message"`
	Category apperror.Category `json:"category"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, response{Status: status, Message: message, Data: data})
}

// fail writes the typed error body. Untyped errors are logged and reported as INTERNAL without detail.
func fail(c *gin.Context, logger *zap.Logger, err error) {
	status, category, message := apperror.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("❌ Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Status: status, Message: message, Category: category})
}

func badRequest(c *gin.Context, logger *zap.Logger, msg string) {
	fail(c, logger, apperror.Validation(msg))
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil
}

// UserContext copies X-User-Id into the request context for the services downstream.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(requestctx.HeaderUserID); userID != "" {
			c.Request = c.Request.WithContext(requestctx.WithUserID(c.Request.Context(), userID))
		}
		c.Next()
	}
}

// Health answers GET /health.
func Health(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service})
	}
}
