package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/application/usecase"
)

// ModerationController exposes the group moderation commands.
type ModerationController struct {
	UC *usecase.ModerateGroupUseCase
}

func NewModerationController(uc *usecase.ModerateGroupUseCase) *ModerationController {
	return &ModerationController{UC: uc}
}

// moderationRequest is the union of every command's fields; Action selects
// the command.
type moderationRequest struct {
	Action          string `json:"action" binding:"required"`
	TargetID        string `json:"targetId"`
	IsAdmin         bool   `json:"isAdmin"`
	IsSilent        bool   `json:"isSilent"`
	DurationSeconds *int64 `json:"durationSeconds"`
	Reason          string `json:"reason"`
	Title           string `json:"title"`
	Nickname        string `json:"nickname"`
	TraceID         string `json:"traceId"`
}

func (r moderationRequest) command(operatorID string) (chat.ModerationCommand, bool) {
	switch r.Action {
	case "set_admin":
		return chat.SetAdmin{OperatorID: operatorID, TargetID: r.TargetID, IsAdmin: r.IsAdmin}, true
	case "set_silent":
		cmd := chat.SetMemberSilent{OperatorID: operatorID, TargetID: r.TargetID, IsSilent: r.IsSilent}
		if r.DurationSeconds != nil {
			d := time.Duration(*r.DurationSeconds) * time.Second
			cmd.Duration = &d
		}
		return cmd, true
	case "toggle_all_silent":
		return chat.ToggleAllSilent{OperatorID: operatorID, IsSilent: r.IsSilent, Reason: r.Reason}, true
	case "set_title":
		return chat.SetMemberTitle{OperatorID: operatorID, TargetID: r.TargetID, Title: r.Title}, true
	case "set_nickname":
		return chat.SetMemberNickname{OperatorID: operatorID, TargetID: r.TargetID, Nickname: r.Nickname}, true
	case "leave", "remove":
		return chat.LeaveGroup{OperatorID: operatorID, TargetID: r.TargetID}, true
	case "remove_announcement":
		return chat.RemoveAnnouncement{OperatorID: operatorID, TraceID: r.TraceID}, true
	}
	return nil, false
}

func (h *ModerationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req moderationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, err)
			return
		}
		cmd, ok := req.command(callerID(c))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown moderation action " + req.Action})
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.ModerateGroupInput{ChatID: c.Param("chatId"), Command: cmd})
		if err != nil {
			writeError(c, err)
			return
		}
		writeOutcome(c, res, nil)
	}
}
