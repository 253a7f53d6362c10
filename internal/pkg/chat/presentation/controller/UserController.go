package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zenchatty/internal/pkg/chat/application/usecase"
)

// RegisterUserController upserts the caller into the chat user directory.
type RegisterUserController struct {
	UC *usecase.RegisterUserUseCase
}

func NewRegisterUserController(uc *usecase.RegisterUserUseCase) *RegisterUserController {
	return &RegisterUserController{UC: uc}
}

type registerUserRequest struct {
	DisplayName           string `json:"displayName"`
	AllowStrangerMessages bool   `json:"allowStrangerMessages"`
}

func (h *RegisterUserController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()
		u, err := h.UC.Execute(ctx, usecase.RegisterUserInput{
			UserID:                callerID(c),
			DisplayName:           req.DisplayName,
			AllowStrangerMessages: req.AllowStrangerMessages,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":                    u.ID,
			"displayName":           u.DisplayName,
			"allowStrangerMessages": u.AllowStrangerMessages,
			"createdAt":             u.CreatedAt,
		})
	}
}

// ConfirmFriendshipController records an accepted friend request.
type ConfirmFriendshipController struct {
	UC *usecase.ConfirmFriendshipUseCase
}

func NewConfirmFriendshipController(uc *usecase.ConfirmFriendshipUseCase) *ConfirmFriendshipController {
	return &ConfirmFriendshipController{UC: uc}
}

func (h *ConfirmFriendshipController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()
		pc, err := h.UC.Execute(ctx, usecase.ConfirmFriendshipInput{UserID: callerID(c), FriendID: c.Param("friendId")})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chatId": pc.ID, "informal": pc.Private.IsInformal})
	}
}
