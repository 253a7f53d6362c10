package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/persistence/recency"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
	userport "zenchatty/internal/repository/port"
)

// DefaultStepTimeout bounds each I/O step of a delivery.
const DefaultStepTimeout = 5 * time.Second

// StageAccounted is the ledger stage guarding unread increments.
const StageAccounted = "accounted"

// DeliverMessageUseCase is the queue consumer side of the pipeline: persist,
// cache, account unread state and fan out. Every step is safe to replay for
// the same trace id.
type DeliverMessageUseCase struct {
	Chats       repository.ChatRepository
	Messages    repository.MessageRepository
	Contacts    repository.ContactRepository
	Users       userport.UserRepository
	Cache       *recency.Cache
	Ledger      *DeliveryLedger
	Pusher      Pusher
	Log         *zap.Logger
	Now         func() time.Time
	StepTimeout time.Duration
}

func NewDeliverMessageUseCase(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	contacts repository.ContactRepository,
	users userport.UserRepository,
	cache *recency.Cache,
	ledger *DeliveryLedger,
	pusher Pusher,
	log *zap.Logger,
) *DeliverMessageUseCase {
	if pusher == nil {
		pusher = noopPusher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliverMessageUseCase{
		Chats:       chats,
		Messages:    messages,
		Contacts:    contacts,
		Users:       users,
		Cache:       cache,
		Ledger:      ledger,
		Pusher:      pusher,
		Log:         log,
		StepTimeout: DefaultStepTimeout,
	}
}

func (uc *DeliverMessageUseCase) step(ctx context.Context) (context.Context, context.CancelFunc) {
	d := uc.StepTimeout
	if d <= 0 {
		d = DefaultStepTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Execute delivers m. Errors wrapping ErrUnresolvable will never succeed on
// retry; errors wrapping ErrPersistence may.
func (uc *DeliverMessageUseCase) Execute(ctx context.Context, m chat.Message) error {
	if m.TraceID == "" || m.ChatID == "" || m.SenderID == "" {
		return fmt.Errorf("%w: %v", ErrUnresolvable, chat.ErrMissingIdentity)
	}
	m.SentAt = chat.Stamp(m.SentAt)
	log := uc.Log.With(zap.String("trace_id", m.TraceID), zap.String("chat_id", m.ChatID))

	c, err := uc.resolve(ctx, m)
	if err != nil {
		return err
	}

	m, inserted, err := uc.persist(ctx, m)
	if err != nil {
		return err
	}

	if uc.Cache != nil {
		uc.Cache.Insert(m)
	}

	if m.IsAnnouncement && c.IsGroup() && !m.IsCanceled {
		sctx, cancel := uc.step(ctx)
		err := uc.Chats.AppendAnnouncement(sctx, c.ID, m.TraceID)
		cancel()
		if err != nil {
			log.Warn("append announcement failed", zap.Error(err))
		}
	}

	recipients, err := uc.account(ctx, m, inserted, log)
	if err != nil {
		return err
	}

	uc.fanOut(m, recipients, log)
	log.Debug("message delivered", zap.Bool("inserted", inserted), zap.Int("recipients", len(recipients)))
	return nil
}

func (uc *DeliverMessageUseCase) resolve(ctx context.Context, m chat.Message) (*chat.Chat, error) {
	sctx, cancel := uc.step(ctx)
	defer cancel()

	c, err := uc.Chats.FindChat(sctx, m.ChatID)
	if errors.Is(err, chat.ErrNotFound) {
		return nil, fmt.Errorf("%w: chat %s", ErrUnresolvable, m.ChatID)
	}
	if err != nil {
		return nil, persistence(err)
	}
	if _, err := uc.Users.FindByID(sctx, m.SenderID); err != nil {
		if errors.Is(err, userport.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: sender %s", ErrUnresolvable, m.SenderID)
		}
		return nil, persistence(err)
	}
	return c, nil
}

// persist stores m keyed by trace id. On replay the stored row wins, so a
// recall that happened in between is not undone.
func (uc *DeliverMessageUseCase) persist(ctx context.Context, m chat.Message) (chat.Message, bool, error) {
	sctx, cancel := uc.step(ctx)
	defer cancel()

	m.ServerCaughtAt = chat.Stamp(clockOr(uc.Now)())
	inserted, err := uc.Messages.SaveMessage(sctx, m)
	if err != nil {
		return m, false, persistence(err)
	}
	if inserted {
		return m, true, nil
	}
	stored, err := uc.Messages.FindMessage(sctx, m.TraceID)
	if err != nil {
		return m, false, persistence(err)
	}
	return *stored, false, nil
}

// account bumps unread state once per trace id and returns the recipients.
func (uc *DeliverMessageUseCase) account(ctx context.Context, m chat.Message, inserted bool, log *zap.Logger) ([]chat.Contact, error) {
	sctx, cancel := uc.step(ctx)
	defer cancel()

	first := inserted
	if uc.Ledger != nil {
		claimed, err := uc.Ledger.Claim(sctx, m.TraceID, StageAccounted)
		if err != nil {
			log.Warn("delivery ledger unavailable, falling back to insert result", zap.Error(err))
		} else {
			first = claimed
		}
	}

	contacts, err := uc.Contacts.ListContactsByChat(sctx, m.ChatID)
	if err != nil {
		if first && uc.Ledger != nil {
			if rerr := uc.Ledger.Release(sctx, m.TraceID, StageAccounted); rerr != nil {
				log.Warn("release ledger stage failed", zap.Error(rerr))
			}
		}
		return nil, persistence(err)
	}

	recipients := make([]chat.Contact, 0, len(contacts))
	for _, ct := range contacts {
		if ct.HostUserID == m.SenderID {
			continue
		}
		recipients = append(recipients, ct)
		if !first {
			continue
		}
		if err := uc.Contacts.IncrementUnread(sctx, ct.HostUserID, m.ChatID, m.IsVitalFor(ct.HostUserID), m.ServerCaughtAt); err != nil {
			log.Error("increment unread failed", zap.String("user_id", ct.HostUserID), zap.Error(err))
		}
	}
	return recipients, nil
}

func (uc *DeliverMessageUseCase) fanOut(m chat.Message, recipients []chat.Contact, log *zap.Logger) {
	pusher := uc.Pusher
	if pusher == nil {
		return
	}
	payload, err := encodeEvent(EventMessage, NewMessageView(m))
	if err != nil {
		log.Error("encode push payload failed", zap.Error(err))
		return
	}
	pusher.Push(m.ChatID, payload)

	for _, r := range recipients {
		update, err := encodeEvent(EventInboxUpdate, InboxUpdate{ChatID: m.ChatID, TraceID: m.TraceID, Vital: m.IsVitalFor(r.HostUserID)})
		if err != nil {
			continue
		}
		pusher.NotifyUser(r.HostUserID, update)
	}
}
