package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zenchatty/internal/pkg/chat/application/usecase"
)

// ListContactsController returns the caller's inbox.
type ListContactsController struct {
	UC *usecase.ListContactsUseCase
}

func NewListContactsController(uc *usecase.ListContactsUseCase) *ListContactsController {
	return &ListContactsController{UC: uc}
}

type contactView struct {
	ChatID          string    `json:"chatId"`
	LastUnreadCount int       `json:"lastUnreadCount"`
	HasVitalUnread  bool      `json:"hasVitalUnread"`
	IsBlocked       bool      `json:"isBlocked"`
	IsPinned        bool      `json:"isPinned"`
	LastUsed        time.Time `json:"lastUsed"`
}

func (h *ListContactsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()
		contacts, err := h.UC.Execute(ctx, callerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]contactView, 0, len(contacts))
		for _, ct := range contacts {
			out = append(out, contactView{
				ChatID:          ct.ChatID,
				LastUnreadCount: ct.LastUnreadCount,
				HasVitalUnread:  ct.HasVitalUnread,
				IsBlocked:       ct.IsBlocked,
				IsPinned:        ct.IsPinned,
				LastUsed:        ct.LastUsed,
			})
		}
		c.JSON(http.StatusOK, gin.H{"contacts": out})
	}
}

// UpdateContactController applies one fixed action; it is mounted once per
// action (read, block, unblock, pin, unpin).
type UpdateContactController struct {
	UC     *usecase.UpdateContactUseCase
	Action usecase.ContactAction
}

func NewUpdateContactController(uc *usecase.UpdateContactUseCase, action usecase.ContactAction) *UpdateContactController {
	return &UpdateContactController{UC: uc, Action: action}
}

func (h *UpdateContactController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()
		err := h.UC.Execute(ctx, usecase.UpdateContactInput{
			UserID: callerID(c),
			ChatID: c.Param("chatId"),
			Action: h.Action,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
