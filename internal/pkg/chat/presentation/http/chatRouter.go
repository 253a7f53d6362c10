package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zenchatty/internal/infrastructure/realtime"
	"zenchatty/internal/pkg/chat/application/usecase"
	"zenchatty/internal/pkg/chat/presentation/controller"
)

// UseCases is everything the chat routes call into. It is assembled once at
// startup.
type UseCases struct {
	Send              *usecase.TrySendMessageUseCase
	Announce          *usecase.PublishAnnouncementUseCase
	History           *usecase.GetHistoryUseCase
	Recall            *usecase.RecallMessageUseCase
	CreateChat        *usecase.CreateChatUseCase
	Join              *usecase.JoinConversationUseCase
	Participants      *usecase.ListParticipantsUseCase
	Moderate          *usecase.ModerateGroupUseCase
	InviteMember      *usecase.InviteMemberUseCase
	CreateOpenInvite  *usecase.CreateOpenInviteUseCase
	ConsumeInvite     *usecase.ConsumeInviteUseCase
	RevokeInvite      *usecase.RevokeInviteUseCase
	ListContacts      *usecase.ListContactsUseCase
	UpdateContact     *usecase.UpdateContactUseCase
	RegisterUser      *usecase.RegisterUserUseCase
	ConfirmFriendship *usecase.ConfirmFriendshipUseCase
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, uc UseCases, router *realtime.Router, log *zap.Logger) {
	g.Use(controller.RequireCaller())

	// POST /api/v1/users/me -> register or update the caller
	g.POST("/users/me", controller.NewRegisterUserController(uc.RegisterUser).Handle())
	// POST /api/v1/friends/:friendId -> confirm a friendship
	g.POST("/friends/:friendId", controller.NewConfirmFriendshipController(uc.ConfirmFriendship).Handle())

	// POST /api/v1/chat -> create a chat
	g.POST("/chat", controller.NewCreateChatController(uc.CreateChat).Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/chat/ws", controller.NewChatSocketController(router, uc.Send, uc.Join, log).Handle())

	// POST /api/v1/chat/:chatId -> send a message into a chat
	g.POST("/chat/:chatId", controller.NewSendMessageController(uc.Send).Handle())

	// GET /api/v1/chat/:chatId/messages -> page through history
	g.GET("/chat/:chatId/messages", controller.NewGetHistoryController(uc.History).Handle())
	g.GET("/chat/:chatId/participants", controller.NewListParticipantsController(uc.Participants).Handle())

	// DELETE /api/v1/messages/:traceId -> recall a message
	g.DELETE("/messages/:traceId", controller.NewRecallMessageController(uc.Recall).Handle())

	// group administration
	g.POST("/chat/:chatId/moderation", controller.NewModerationController(uc.Moderate).Handle())
	g.POST("/chat/:chatId/announcements", controller.NewPublishAnnouncementController(uc.Announce).Handle())
	g.POST("/chat/:chatId/invites", controller.NewInviteMemberController(uc.InviteMember).Handle())
	g.POST("/chat/:chatId/invites/open", controller.NewCreateOpenInviteController(uc.CreateOpenInvite).Handle())
	g.POST("/invites/:code/accept", controller.NewConsumeInviteController(uc.ConsumeInvite).Handle())
	g.DELETE("/invites/:code", controller.NewRevokeInviteController(uc.RevokeInvite).Handle())

	// inbox
	g.GET("/contacts", controller.NewListContactsController(uc.ListContacts).Handle())
	contactActions := map[string]usecase.ContactAction{
		"read":    usecase.ContactMarkRead,
		"block":   usecase.ContactBlock,
		"unblock": usecase.ContactUnblock,
		"pin":     usecase.ContactPin,
		"unpin":   usecase.ContactUnpin,
	}
	for name, action := range contactActions {
		g.POST("/contacts/:chatId/"+name, controller.NewUpdateContactController(uc.UpdateContact, action).Handle())
	}
}
