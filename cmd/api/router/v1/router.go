package v1

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zenchatty/internal/infrastructure/realtime"
	httpHandler "zenchatty/internal/pkg/chat/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, uc httpHandler.UseCases, router *realtime.Router, log *zap.Logger) {
	v1 := r.Group("/api/v1")
	httpHandler.RegisterRoutes(v1, uc, router, log)
}
