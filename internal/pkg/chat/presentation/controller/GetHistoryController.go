package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"zenchatty/internal/pkg/chat/application/usecase"
)

// GetHistoryController pages backwards through a chat's messages.
type GetHistoryController struct {
	UC *usecase.GetHistoryUseCase
}

func NewGetHistoryController(uc *usecase.GetHistoryUseCase) *GetHistoryController {
	return &GetHistoryController{UC: uc}
}

// Handle accepts ?limit=N and ?before=<RFC3339Nano>. The response carries
// nextBefore, the cursor for the following (older) page.
func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := usecase.DefaultHistoryLimit
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		var before time.Time
		if v := c.Query("before"); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
				return
			}
			before = t
		}

		ctx, cancel := requestContext(c)
		defer cancel()
		msgs, err := h.UC.Execute(ctx, usecase.GetHistoryInput{
			ChatID:      c.Param("chatId"),
			RequesterID: callerID(c),
			Limit:       limit,
			Before:      before,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		body := gin.H{
			"messages": usecase.NewMessageViews(msgs),
			"count":    len(msgs),
		}
		if len(msgs) > 0 {
			body["nextBefore"] = msgs[0].SentAt.Format(time.RFC3339Nano)
		}
		c.JSON(http.StatusOK, body)
	}
}
