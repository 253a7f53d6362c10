package realtime

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Router is the pipeline's push transport. Chat topics fan out message and
// recall envelopes to every subscribed socket; user signals (inbox updates)
// go to the single live session of a user.
type Router struct {
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Connection            // sessionID -> connection
	byUser   map[string]string                 // userID -> sessionID
	topics   map[string]map[string]*Connection // chatID -> sessionID -> connection
	subs     map[string]map[string]struct{}    // sessionID -> chatIDs

	pushed  atomic.Int64
	dropped atomic.Int64
}

// Stats counts frames accepted and refused since start.
type Stats struct {
	Sessions int
	Topics   int
	Pushed   int64
	Dropped  int64
}

// NewRouter constructs an empty Router; log may be nil.
func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		log:      log,
		sessions: make(map[string]*Connection),
		byUser:   make(map[string]string),
		topics:   make(map[string]map[string]*Connection),
		subs:     make(map[string]map[string]struct{}),
	}
}

// Attach registers conn as its user's live session. An older session of the
// same user is detached and closed.
func (r *Router) Attach(conn *Connection) {
	var previous *Connection

	r.mu.Lock()
	if oldID, ok := r.byUser[conn.UserID]; ok {
		previous = r.sessions[oldID]
		r.detachLocked(oldID)
	}
	r.sessions[conn.ID] = conn
	r.byUser[conn.UserID] = conn.ID
	r.mu.Unlock()

	conn.Start()
	r.log.Debug("realtime session attached", zap.String("user_id", conn.UserID), zap.String("session_id", conn.ID))

	if previous != nil {
		previous.Close(CloseSessionReplaced, "session replaced")
	}
}

// Detach forgets conn and all its subscriptions.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	r.detachLocked(conn.ID)
	r.mu.Unlock()
}

// Join subscribes conn to the topic of chatID. Unattached connections are ignored.
func (r *Router) Join(chatID string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[conn.ID]; !ok {
		return
	}
	topic := r.topics[chatID]
	if topic == nil {
		topic = make(map[string]*Connection)
		r.topics[chatID] = topic
	}
	topic[conn.ID] = conn

	set := r.subs[conn.ID]
	if set == nil {
		set = make(map[string]struct{})
		r.subs[conn.ID] = set
	}
	set[chatID] = struct{}{}
}

// Leave unsubscribes conn from chatID.
func (r *Router) Leave(chatID string, conn *Connection) {
	r.mu.Lock()
	r.unsubscribeLocked(chatID, conn.ID)
	r.mu.Unlock()
}

// Push delivers payload to every subscriber of the chat topic and returns how
// many connections accepted it.
func (r *Router) Push(chatID string, payload []byte) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.topics[chatID]))
	for _, conn := range r.topics[chatID] {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	accepted := 0
	for _, conn := range targets {
		if r.deliver(conn, payload) {
			accepted++
		}
	}
	return accepted
}

// NotifyUser delivers payload to the live session of userID, if any.
func (r *Router) NotifyUser(userID string, payload []byte) bool {
	r.mu.RLock()
	conn := r.sessions[r.byUser[userID]]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	return r.deliver(conn, payload)
}

func (r *Router) deliver(conn *Connection, payload []byte) bool {
	if err := conn.Send(payload); err != nil {
		r.dropped.Add(1)
		r.log.Debug("realtime frame dropped",
			zap.String("user_id", conn.UserID),
			zap.String("session_id", conn.ID),
			zap.Error(err))
		return false
	}
	r.pushed.Add(1)
	return true
}

// Subscribers returns the number of connections subscribed to chatID.
func (r *Router) Subscribers(chatID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[chatID])
}

func (r *Router) Stats() Stats {
	r.mu.RLock()
	s := Stats{Sessions: len(r.sessions), Topics: len(r.topics)}
	r.mu.RUnlock()
	s.Pushed = r.pushed.Load()
	s.Dropped = r.dropped.Load()
	return s
}

// Close closes every session and resets the router.
func (r *Router) Close() {
	r.mu.Lock()
	open := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		open = append(open, conn)
	}
	r.sessions = make(map[string]*Connection)
	r.byUser = make(map[string]string)
	r.topics = make(map[string]map[string]*Connection)
	r.subs = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range open {
		conn.Close(CloseServerShutdown, "server shutting down")
	}
	r.log.Info("realtime router closed", zap.Int("sessions", len(open)))
}

func (r *Router) detachLocked(sessionID string) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if r.byUser[conn.UserID] == sessionID {
		delete(r.byUser, conn.UserID)
	}
	for chatID := range r.subs[sessionID] {
		r.unsubscribeLocked(chatID, sessionID)
	}
	delete(r.subs, sessionID)
}

func (r *Router) unsubscribeLocked(chatID, sessionID string) {
	if topic := r.topics[chatID]; topic != nil {
		delete(topic, sessionID)
		if len(topic) == 0 {
			delete(r.topics, chatID)
		}
	}
	if set := r.subs[sessionID]; set != nil {
		delete(set, chatID)
		if len(set) == 0 {
			delete(r.subs, sessionID)
		}
	}
}
