package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zenchatty/internal/pkg/chat/application/usecase"
)

// RecallMessageController cancels a message by trace id.
type RecallMessageController struct {
	UC *usecase.RecallMessageUseCase
}

func NewRecallMessageController(uc *usecase.RecallMessageUseCase) *RecallMessageController {
	return &RecallMessageController{UC: uc}
}

func (h *RecallMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.RecallInput{
			TraceID:     c.Param("traceId"),
			RequesterID: callerID(c),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		status := http.StatusOK
		switch res {
		case usecase.RecallForbidden:
			status = http.StatusForbidden
		case usecase.RecallAlreadyCanceled:
			status = http.StatusConflict
		case usecase.RecallNotFound:
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"result": res.String()})
	}
}
