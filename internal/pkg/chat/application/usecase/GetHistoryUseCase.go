package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/persistence/recency"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// GetHistoryInput pages backwards through a chat. A zero Before starts from
// the newest message.
type GetHistoryInput struct {
	ChatID      string
	RequesterID string
	Limit       int
	Before      time.Time
}

// GetHistoryUseCase reads the recency cache first and tops up from the
// durable store when the cache cannot fill the page.
type GetHistoryUseCase struct {
	Chats    repository.ChatRepository
	Messages repository.MessageRepository
	Cache    *recency.Cache
}

func NewGetHistoryUseCase(chats repository.ChatRepository, messages repository.MessageRepository, cache *recency.Cache) *GetHistoryUseCase {
	return &GetHistoryUseCase{Chats: chats, Messages: messages, Cache: cache}
}

// Execute returns up to Limit messages sent before Before, oldest first.
// Unknown chats and chats the requester is not part of both yield chat.ErrNotFound.
func (uc *GetHistoryUseCase) Execute(ctx context.Context, in GetHistoryInput) ([]chat.Message, error) {
	if in.ChatID == "" || in.RequesterID == "" {
		return nil, invalid("chat id and requester id are required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	c, err := uc.Chats.FindChat(ctx, in.ChatID)
	if errors.Is(err, chat.ErrNotFound) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, persistence(err)
	}
	if !c.HasParticipant(in.RequesterID) {
		return nil, chat.ErrNotFound
	}

	in.Before = cursorCeil(in.Before)

	var page []chat.Message
	if uc.Cache != nil {
		page = uc.Cache.Before(in.ChatID, in.Before, limit)
	}
	if len(page) < limit {
		// fetch a full page: the cache may hold rows the store page also has
		stored, err := uc.Messages.ListMessagesBefore(ctx, in.ChatID, in.Before, limit)
		if err != nil {
			return nil, persistence(err)
		}
		page = mergeByTraceID(page, stored)
	}

	sort.SliceStable(page, func(i, j int) bool { return newerFirst(page[i], page[j]) })
	if len(page) > limit {
		page = page[:limit]
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func newerFirst(a, b chat.Message) bool {
	if a.SentAt.Equal(b.SentAt) {
		return a.TraceID > b.TraceID
	}
	return a.SentAt.After(b.SentAt)
}

// mergeByTraceID keeps every message of primary and adds the ones of
// secondary it does not already contain.
func mergeByTraceID(primary, secondary []chat.Message) []chat.Message {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]chat.Message, 0, len(primary)+len(secondary))
	for _, m := range primary {
		seen[m.TraceID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range secondary {
		if _, ok := seen[m.TraceID]; ok {
			continue
		}
		seen[m.TraceID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// cursorCeil rounds a client cursor up to chat.TimePrecision. Stored times
// are whole microseconds, so "sent before" keeps its meaning while the cache
// and the store compare against the same value.
func cursorCeil(before time.Time) time.Time {
	if before.IsZero() {
		return before
	}
	t := chat.Stamp(before)
	if t.Before(before) {
		t = t.Add(chat.TimePrecision)
	}
	return t
}
