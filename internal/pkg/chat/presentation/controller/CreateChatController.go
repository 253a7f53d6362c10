package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/application/usecase"
)

// CreateChatController handles the chat creation endpoint
// One controller per endpoint
type CreateChatController struct {
	UC *usecase.CreateChatUseCase
}

func NewCreateChatController(uc *usecase.CreateChatUseCase) *CreateChatController {
	return &CreateChatController{UC: uc}
}

type groupSettingsRequest struct {
	DisplayName          string `json:"displayName"`
	AvatarURL            string `json:"avatarUrl"`
	IsInviteOnly         bool   `json:"isInviteOnly"`
	IsPrivateChatAllowed bool   `json:"isPrivateChatAllowed"`
}

// createChatRequest opens a private chat with peerId, or a group when kind is "group".
type createChatRequest struct {
	Kind      string               `json:"kind"`
	PeerID    string               `json:"peerId"`
	MemberIDs []string             `json:"memberIds"`
	Settings  groupSettingsRequest `json:"settings"`
}

func (h *CreateChatController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, err)
			return
		}
		in := usecase.CreateChatInput{
			CreatorID: callerID(c),
			PeerID:    req.PeerID,
			MemberIDs: req.MemberIDs,
			Settings: chat.GroupSettings{
				DisplayName:          req.Settings.DisplayName,
				AvatarURL:            req.Settings.AvatarURL,
				IsInviteOnly:         req.Settings.IsInviteOnly,
				IsPrivateChatAllowed: req.Settings.IsPrivateChatAllowed,
			},
		}
		switch req.Kind {
		case "", "private":
			in.Kind = chat.ChatKindPrivate
		case "group":
			in.Kind = chat.ChatKindGroup
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be private or group"})
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()
		conv, err := h.UC.Execute(ctx, in)
		if err != nil {
			writeError(c, err)
			return
		}

		body := gin.H{
			"id":           conv.ID,
			"kind":         req.Kind,
			"created_at":   conv.CreatedAt,
			"participants": conv.Participants(),
		}
		if conv.Private != nil {
			body["kind"] = "private"
			body["informal"] = conv.Private.IsInformal
		}
		c.JSON(http.StatusCreated, body)
	}
}
