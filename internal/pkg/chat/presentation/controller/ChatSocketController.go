package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"zenchatty/internal/infrastructure/realtime"
	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/application/usecase"
)

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
// Sends go through the same validation and queue as the HTTP endpoint; the
// delivered message comes back as a push on the chat topic.
type ChatSocketController struct {
	router          *realtime.Router
	sendMessageUC   *usecase.TrySendMessageUseCase
	joinRoomUC      *usecase.JoinConversationUseCase
	log             *zap.Logger
	inflightTimeout time.Duration
}

func NewChatSocketController(router *realtime.Router, send *usecase.TrySendMessageUseCase, join *usecase.JoinConversationUseCase, log *zap.Logger) *ChatSocketController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatSocketController{
		router:          router,
		sendMessageUC:   send,
		joinRoomUC:      join,
		log:             log,
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the gateway in front of the service enforces origin and identity
		return true
	},
}

type inboundFrame struct {
	Type             string   `json:"type"`
	ChatID           string   `json:"chatId,omitempty"`
	Content          string   `json:"content,omitempty"`
	MsgType          *int16   `json:"msgType,omitempty"`
	IsMentioningAll  bool     `json:"isMentioningAll,omitempty"`
	MentionedUserIDs []string `json:"mentionedUserIds,omitempty"`
	ViaGroupID       string   `json:"viaGroupId,omitempty"`
	// Ref is echoed back on the ack so clients can match replies.
	Ref string `json:"ref,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
	Ref   string `json:"ref,omitempty"`
}

type ackFrame struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
	TraceID  string `json:"traceId,omitempty"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := callerID(c)

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response
			ctl.log.Debug("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.router.Attach(conn)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.reply(conn, ackFrame{Type: "connected"})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "", "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "", "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "join":
				ctl.handleJoin(c, conn, frame)
			case "leave":
				ctl.handleLeave(conn, frame)
			case "message":
				ctl.handleMessage(c, conn, frame)
			default:
				ctl.replyError(conn, frame.Ref, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) handleJoin(c *gin.Context, conn *realtime.Connection, frame inboundFrame) {
	if frame.ChatID == "" {
		ctl.replyError(conn, frame.Ref, "bad_request", "chatId is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	err := ctl.joinRoomUC.Execute(ctx, usecase.JoinConversationInput{
		ConversationID: frame.ChatID,
		UserID:         conn.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, frame.Ref, err)
		return
	}

	ctl.router.Join(frame.ChatID, conn)
	ctl.reply(conn, ackFrame{Type: "joined", ChatID: frame.ChatID, Ref: frame.Ref})
}

func (ctl *ChatSocketController) handleLeave(conn *realtime.Connection, frame inboundFrame) {
	if frame.ChatID == "" {
		ctl.replyError(conn, frame.Ref, "bad_request", "chatId is required")
		return
	}
	ctl.router.Leave(frame.ChatID, conn)
	ctl.reply(conn, ackFrame{Type: "left", ChatID: frame.ChatID, Ref: frame.Ref})
}

func (ctl *ChatSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, frame inboundFrame) {
	msgType := chat.MessageTypeNormal
	if frame.MsgType != nil {
		msgType = chat.MessageType(*frame.MsgType)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	d, msg := ctl.sendMessageUC.Execute(ctx, usecase.TrySendInput{
		ChatID:           frame.ChatID,
		SenderID:         conn.UserID,
		Content:          frame.Content,
		Type:             msgType,
		IsMentioningAll:  frame.IsMentioningAll,
		MentionedUserIDs: frame.MentionedUserIDs,
		ViaGroupID:       frame.ViaGroupID,
	})
	ack := ackFrame{Type: "sent", ChatID: frame.ChatID, Ref: frame.Ref, Decision: d.Code.String(), Reason: d.Reason}
	if msg != nil {
		ack.TraceID = msg.TraceID
	}
	ctl.reply(conn, ack)
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, ref string, err error) {
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		ctl.log.Error("websocket use case failed", zap.String("user_id", conn.UserID), zap.Error(err))
		ctl.replyError(conn, ref, "internal_error", "unexpected persistence error")
	case errors.Is(err, chat.ErrNotParticipant):
		ctl.replyError(conn, ref, "forbidden", "user is not a participant in this conversation")
	default:
		ctl.replyError(conn, ref, "bad_request", err.Error())
	}
}

func (ctl *ChatSocketController) reply(conn *realtime.Connection, frame any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, ref, code, message string) {
	ctl.reply(conn, errorFrame{Type: "error", Code: code, Error: message, Ref: ref})
}
