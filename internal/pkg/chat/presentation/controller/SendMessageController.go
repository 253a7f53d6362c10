package controller

import (
	"github.com/gin-gonic/gin"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC *usecase.TrySendMessageUseCase
}

func NewSendMessageController(uc *usecase.TrySendMessageUseCase) *SendMessageController {
	return &SendMessageController{UC: uc}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Content          string   `json:"content"`
	MsgType          *int16   `json:"msgType"`
	IsMentioningAll  bool     `json:"isMentioningAll"`
	MentionedUserIDs []string `json:"mentionedUserIds"`
	ViaGroupID       string   `json:"viaGroupId"`
}

// Handle validates the message and queues it for delivery. 202 means the
// message was accepted, not that it is stored yet.
func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, err)
			return
		}
		msgType := chat.MessageTypeNormal
		if req.MsgType != nil {
			msgType = chat.MessageType(*req.MsgType)
		}

		ctx, cancel := requestContext(c)
		defer cancel()
		d, msg := h.UC.Execute(ctx, usecase.TrySendInput{
			ChatID:           c.Param("chatId"),
			SenderID:         callerID(c),
			Content:          req.Content,
			Type:             msgType,
			IsMentioningAll:  req.IsMentioningAll,
			MentionedUserIDs: req.MentionedUserIDs,
			ViaGroupID:       req.ViaGroupID,
		})
		writeDecision(c, d, msg)
	}
}

// PublishAnnouncementController posts an announcement into a group.
type PublishAnnouncementController struct {
	UC *usecase.PublishAnnouncementUseCase
}

func NewPublishAnnouncementController(uc *usecase.PublishAnnouncementUseCase) *PublishAnnouncementController {
	return &PublishAnnouncementController{UC: uc}
}

type announcementRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *PublishAnnouncementController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req announcementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()
		d, msg := h.UC.Execute(ctx, usecase.PublishAnnouncementInput{
			GroupID:    c.Param("chatId"),
			OperatorID: callerID(c),
			Content:    req.Content,
		})
		writeDecision(c, d, msg)
	}
}
