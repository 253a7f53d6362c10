package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/application/usecase"
)

func inviteBody(l *chat.GroupInviteLink) gin.H {
	if l == nil {
		return nil
	}
	return gin.H{
		"code":      l.Code,
		"groupId":   l.GroupID,
		"targetId":  l.TargetUserID,
		"expiresAt": l.ExpiresAt,
	}
}

// InviteMemberController issues a personal invitation to a friend.
type InviteMemberController struct {
	UC *usecase.InviteMemberUseCase
}

func NewInviteMemberController(uc *usecase.InviteMemberUseCase) *InviteMemberController {
	return &InviteMemberController{UC: uc}
}

type inviteMemberRequest struct {
	TargetID string `json:"targetId" binding:"required"`
}

func (h *InviteMemberController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req inviteMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()
		res, link, err := h.UC.Execute(ctx, usecase.InviteMemberInput{
			GroupID:    c.Param("chatId"),
			OperatorID: callerID(c),
			TargetID:   req.TargetID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		writeOutcome(c, res, inviteBody(link))
	}
}

// CreateOpenInviteController issues a link anyone may use.
type CreateOpenInviteController struct {
	UC *usecase.CreateOpenInviteUseCase
}

func NewCreateOpenInviteController(uc *usecase.CreateOpenInviteUseCase) *CreateOpenInviteController {
	return &CreateOpenInviteController{UC: uc}
}

type openInviteRequest struct {
	TTLSeconds int64 `json:"ttlSeconds"`
}

func (h *CreateOpenInviteController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req openInviteRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				writeError(c, err)
				return
			}
		}
		ctx, cancel := requestContext(c)
		defer cancel()
		res, link, err := h.UC.Execute(ctx, usecase.CreateOpenInviteInput{
			GroupID:    c.Param("chatId"),
			OperatorID: callerID(c),
			TTL:        time.Duration(req.TTLSeconds) * time.Second,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		writeOutcome(c, res, inviteBody(link))
	}
}

// ConsumeInviteController joins the caller to a group through a link.
type ConsumeInviteController struct {
	UC *usecase.ConsumeInviteUseCase
}

func NewConsumeInviteController(uc *usecase.ConsumeInviteUseCase) *ConsumeInviteController {
	return &ConsumeInviteController{UC: uc}
}

func (h *ConsumeInviteController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.ConsumeInviteInput{Code: c.Param("code"), UserID: callerID(c)})
		if err != nil {
			writeError(c, err)
			return
		}
		writeOutcome(c, res, nil)
	}
}

// RevokeInviteController disables a link.
type RevokeInviteController struct {
	UC *usecase.RevokeInviteUseCase
}

func NewRevokeInviteController(uc *usecase.RevokeInviteUseCase) *RevokeInviteController {
	return &RevokeInviteController{UC: uc}
}

func (h *RevokeInviteController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.RevokeInviteInput{Code: c.Param("code"), OperatorID: callerID(c)})
		if err != nil {
			writeError(c, err)
			return
		}
		if !res.OK {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "reason": res.Reason})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
