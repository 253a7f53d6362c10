package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/application/usecase"
)

// CallerHeader carries the authenticated user id set by the gateway in front
// of this service.
const CallerHeader = "X-User-ID"

const callerKey = "chat.caller"

const requestTimeout = 3 * time.Second

// RequireCaller rejects requests without a caller id.
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CallerHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": CallerHeader + " header is required"})
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(callerKey)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// writeError maps use case errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected persistence error"})
		return
	case errors.Is(err, chat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrNotParticipant), errors.Is(err, usecase.ErrNotFriends):
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// writeOutcome renders a moderation outcome; failed outcomes are 403s.
func writeOutcome(c *gin.Context, res chat.Outcome, body gin.H) {
	if !res.OK {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "reason": res.Reason})
		return
	}
	if body == nil {
		body = gin.H{}
	}
	body["ok"] = true
	if res.Event != "" {
		body["event"] = res.Event
	}
	c.JSON(http.StatusOK, body)
}

func decisionStatus(code chat.DecisionCode) int {
	switch code {
	case chat.DecisionSuccess:
		return http.StatusAccepted
	case chat.DecisionContentEmpty, chat.DecisionViaGroupChatValidationFailed:
		return http.StatusBadRequest
	case chat.DecisionChatNotFound, chat.DecisionSenderNotFound:
		return http.StatusNotFound
	case chat.DecisionInternalError:
		return http.StatusInternalServerError
	}
	return http.StatusForbidden
}

func writeDecision(c *gin.Context, d chat.Decision, msg *chat.Message) {
	body := gin.H{"decision": d.Code.String()}
	if d.Reason != "" {
		body["reason"] = d.Reason
	}
	if msg != nil {
		body["traceId"] = msg.TraceID
		body["sentAt"] = msg.SentAt
	}
	c.JSON(decisionStatus(d.Code), body)
}
