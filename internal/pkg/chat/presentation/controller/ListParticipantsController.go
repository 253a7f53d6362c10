package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zenchatty/internal/pkg/chat/application/usecase"
)

type ListParticipantsController struct {
	UC *usecase.ListParticipantsUseCase
}

func NewListParticipantsController(uc *usecase.ListParticipantsUseCase) *ListParticipantsController {
	return &ListParticipantsController{UC: uc}
}

func (h *ListParticipantsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()
		out, err := h.UC.Execute(ctx, usecase.ListParticipantsInput{
			ConversationID: c.Param("chatId"),
			RequesterID:    callerID(c),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"participants": out})
	}
}
