package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cacheAdapter "zenchatty/internal/infrastructure/cache/adapter"
	cport "zenchatty/internal/infrastructure/cache/port"
	"zenchatty/internal/infrastructure/config"
	"zenchatty/internal/infrastructure/database"
	queueAdapter "zenchatty/internal/infrastructure/queue/adapter"
	qport "zenchatty/internal/infrastructure/queue/port"
	"zenchatty/internal/infrastructure/realtime"
	"zenchatty/internal/pkg/chat/application/task"
	"zenchatty/internal/pkg/chat/application/usecase"
	"zenchatty/internal/pkg/chat/persistence/recency"
	repoAdapter "zenchatty/internal/pkg/chat/persistence/repository/adapter"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
	httpHandler "zenchatty/internal/pkg/chat/presentation/http"
	userAdapter "zenchatty/internal/repository/adapter"
	userport "zenchatty/internal/repository/port"
)

type stores struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	contacts repository.ContactRepository
	users    userport.UserRepository
	pool     *pgxpool.Pool
}

func (s stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (stores, error) {
	if cfg.StoreBackend == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		mem := repoAdapter.NewMemoryStore()
		return stores{chats: mem, messages: mem, contacts: mem, users: userAdapter.NewMemoryUserRepository()}, nil
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	return stores{
		chats:    repoAdapter.NewPgChatRepository(pool),
		messages: repoAdapter.NewPgMessageRepository(pool),
		contacts: repoAdapter.NewPgContactRepository(pool),
		users:    userAdapter.NewPgUserRepository(pool),
		pool:     pool,
	}, nil
}

// openLedgerCache uses redis when configured and falls back to process memory,
// which only dedupes replays seen by this process.
func openLedgerCache(cfg *config.Config, log *zap.Logger) cport.Cache {
	if cfg.RedisURL != "" {
		rc, err := cacheAdapter.NewRedisAdapter(cfg.RedisURL)
		if err == nil {
			return rc
		}
		log.Warn("redis unavailable, delivery ledger falls back to memory", zap.Error(err))
	}
	return cacheAdapter.NewMemoryCache()
}

func openQueue(cfg *config.Config, log *zap.Logger) (qport.Client, qport.Server, error) {
	switch cfg.QueueBackend {
	case config.QueueAsynq:
		client, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		srv, err := queueAdapter.NewAsynqServer(queueAdapter.AsynqServerOptions{
			RedisURL:    cfg.RedisURL,
			Concurrency: cfg.AsynqConcurrency,
			Queues:      cfg.AsynqQueues,
			Logger:      log,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return client, srv, nil
	case config.QueueRabbitMQ:
		client, err := queueAdapter.NewRabbitClient(cfg.RabbitMQURL, cfg.QueueName)
		if err != nil {
			return nil, nil, err
		}
		srv, err := queueAdapter.NewRabbitServer(cfg.RabbitMQURL, cfg.QueueName, cfg.RabbitMQPrefetch, log)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return client, srv, nil
	case config.QueueDirect:
		q := queueAdapter.NewDirectQueue(cfg.DirectQueueBuffer, log)
		return q, q, nil
	}
	return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
}

// app is the assembled process: use cases plus the long running parts main
// starts and stops.
type app struct {
	useCases   httpHandler.UseCases
	deliver    *usecase.DeliverMessageUseCase
	reconciler *usecase.ReconcileCacheUseCase
}

func buildApp(cfg *config.Config, st stores, ledgerCache cport.Cache, client qport.Client, router *realtime.Router, log *zap.Logger) app {
	cache := recency.New(cfg.Cache.Capacity, cfg.Cache.TTL)
	publisher := task.NewMessagePublisher(client, cfg.QueueName)
	messenger := usecase.NewSystemMessenger(publisher, log)

	policy := usecase.NewSendPolicy(st.chats, st.contacts, st.users, cfg.Chat.MaxContentLength, log)
	send := usecase.NewTrySendMessageUseCase(policy, publisher, log)
	createChat := usecase.NewCreateChatUseCase(st.chats, st.contacts, st.users, messenger)

	deliver := usecase.NewDeliverMessageUseCase(st.chats, st.messages, st.contacts, st.users, cache,
		usecase.NewDeliveryLedger(ledgerCache, cfg.Cache.LedgerTTL), router, log)
	if cfg.Chat.StepTimeout > 0 {
		deliver.StepTimeout = cfg.Chat.StepTimeout
	}

	return app{
		deliver:    deliver,
		reconciler: usecase.NewReconcileCacheUseCase(st.messages, cache, cfg.Cache.ReconcileWindow, log),
		useCases: httpHandler.UseCases{
			Send:              send,
			Announce:          usecase.NewPublishAnnouncementUseCase(send),
			History:           usecase.NewGetHistoryUseCase(st.chats, st.messages, cache),
			Recall:            usecase.NewRecallMessageUseCase(st.chats, st.messages, cache, router, cfg.Chat.RecallWindow, log),
			CreateChat:        createChat,
			Join:              usecase.NewJoinConversationUseCase(st.chats),
			Participants:      usecase.NewListParticipantsUseCase(st.chats),
			Moderate:          usecase.NewModerateGroupUseCase(st.chats, st.messages, st.contacts, messenger, log),
			InviteMember:      usecase.NewInviteMemberUseCase(st.chats, st.users, createChat, messenger, cfg.Chat.InviteTTL),
			CreateOpenInvite:  usecase.NewCreateOpenInviteUseCase(st.chats, cfg.Chat.InviteTTL),
			ConsumeInvite:     usecase.NewConsumeInviteUseCase(st.chats, st.contacts, st.users, messenger, log),
			RevokeInvite:      usecase.NewRevokeInviteUseCase(st.chats),
			ListContacts:      usecase.NewListContactsUseCase(st.contacts),
			UpdateContact:     usecase.NewUpdateContactUseCase(st.contacts),
			RegisterUser:      usecase.NewRegisterUserUseCase(st.users),
			ConfirmFriendship: usecase.NewConfirmFriendshipUseCase(st.users, createChat),
		},
	}
}
