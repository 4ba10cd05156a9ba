// Package realtime serves the WebSocket endpoint: conversation rooms, message
// fan-out, read receipts, typing indicators and notification pushes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/automatehub/automatehub/internal/platform/errors/i18n"
	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/platform/requestctx"
	"github.com/automatehub/automatehub/internal/services/hub/api/wire"
	"github.com/automatehub/automatehub/internal/services/hub/domain/conversation"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification/render"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

const (
	defaultMaxPayloadBytes = 16 * 1024
	defaultFramesPerSecond = 40
	defaultMaxDecodeErrors = 3
	defaultWriteTimeout    = 10 * time.Second
	defaultReplayBatch     = 200

	// envelopeSlack leaves room for type and request_id around a full payload.
	envelopeSlack = 1024
)

var errOriginNotAllowed = errors.New("websocket origin not allowed")

var (
	_ conversation.Listener = (*Hub)(nil)
	_ notification.Pusher   = (*Hub)(nil)
)

// Conversations is the messaging surface the hub drives.
type Conversations interface {
	Get(ctx context.Context, conversationID, userID string) (conversation.Conversation, error)
	MessagesAfter(ctx context.Context, conversationID, userID string, afterSequence int64, limit int) ([]conversation.Message, error)
	Send(ctx context.Context, conversationID, senderID, body, clientMessageID string) (conversation.SendResult, error)
	MarkRead(ctx context.Context, conversationID, userID string, sequence int64) (conversation.ReadState, error)
}

// Authenticator resolves the caller of an upgrade request.
type Authenticator interface {
	Authenticate(r *http.Request) (requestctx.Principal, error)
}

// Config bounds per-connection traffic. Zero values use the defaults.
type Config struct {
	MaxPayloadBytes int
	FramesPerSecond int
	MaxDecodeErrors int
	WriteTimeout    time.Duration
	ReplayBatch     int
	// AllowedOrigins lists browser origins besides the serving host that may
	// upgrade. "*" allows any origin.
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = defaultMaxPayloadBytes
	}
	if c.FramesPerSecond <= 0 {
		c.FramesPerSecond = defaultFramesPerSecond
	}
	if c.MaxDecodeErrors <= 0 {
		c.MaxDecodeErrors = defaultMaxDecodeErrors
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ReplayBatch <= 0 {
		c.ReplayBatch = defaultReplayBatch
	}
	return c
}

// Hub tracks live connections, the conversation rooms they joined and the
// users they belong to.
type Hub struct {
	conversations Conversations
	authn         Authenticator
	logger        *zap.Logger
	cfg           Config

	mu     sync.Mutex
	closed bool
	peers  map[*peer]struct{}
	rooms  map[string]map[*peer]struct{}
	users  map[string]map[*peer]struct{}
	wg     sync.WaitGroup
}

// NewHub builds a hub over conversations.
func NewHub(conversations Conversations, authn Authenticator, logger *zap.Logger, cfg Config) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conversations: conversations,
		authn:         authn,
		logger:        logger,
		cfg:           cfg.withDefaults(),
		peers:         make(map[*peer]struct{}),
		rooms:         make(map[string]map[*peer]struct{}),
		users:         make(map[string]map[*peer]struct{}),
	}
}

// ServeHTTP authenticates the upgrade request and runs the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	principal, err := h.authn.Authenticate(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	locale := i18n.Negotiate(r.Header.Get("Accept-Language"))
	websocket.Server{
		Handshake: h.checkOrigin,
		Handler: func(conn *websocket.Conn) {
			h.serveConn(conn, principal.UserID, locale)
		},
	}.ServeHTTP(w, r)
}

// checkOrigin rejects browser upgrades from origins other than the serving
// host and the allowlist. Cookie tokens make the upgrade otherwise forgeable
// cross-site. Requests without an Origin header come from non-browser clients.
func (h *Hub) checkOrigin(cfg *websocket.Config, r *http.Request) error {
	raw := strings.TrimSpace(r.Header.Get("Origin"))
	if raw == "" {
		return nil
	}
	origin, err := url.Parse(raw)
	if err != nil || origin.Host == "" {
		return errOriginNotAllowed
	}
	cfg.Origin = origin
	if strings.EqualFold(origin.Host, r.Host) {
		return nil
	}
	normalized := strings.ToLower(strings.TrimRight(raw, "/"))
	for _, allowed := range h.cfg.AllowedOrigins {
		allowed = strings.ToLower(strings.TrimRight(strings.TrimSpace(allowed), "/"))
		if allowed == "*" || allowed == normalized {
			return nil
		}
	}
	h.logger.Warn("websocket origin rejected", zap.String("origin", raw))
	return errOriginNotAllowed
}

// Close disconnects every peer and waits for their loops to exit. Later
// upgrades are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
	h.wg.Wait()
}

// MessageSent implements conversation.Listener.
func (h *Hub) MessageSent(_ context.Context, c conversation.Conversation, message conversation.Message) {
	h.broadcast(h.roomPeers(c.ID), frame{
		Type:    frameMessageNew,
		Payload: mustJSON(messagePayload{Message: wire.NewMessage(message)}),
	})
}

// MessageRead implements conversation.Listener.
func (h *Hub) MessageRead(_ context.Context, c conversation.Conversation, state conversation.ReadState) {
	h.broadcast(h.roomPeers(c.ID), frame{
		Type:    frameMessageRead,
		Payload: mustJSON(wire.NewReadReceipt(state)),
	})
}

// PushNotification implements notification.Pusher.
func (h *Hub) PushNotification(_ context.Context, n notification.Notification) {
	for _, p := range h.userPeers(n.RecipientUserID) {
		view := wire.NewNotification(n, render.Printer(p.locale))
		h.send(p, frame{
			Type:    frameNotificationNew,
			Payload: mustJSON(notificationPayload{Notification: view}),
		})
	}
}

// Connections reports the number of live connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *Hub) serveConn(conn *websocket.Conn, userID string, locale language.Tag) {
	conn.MaxPayloadBytes = h.cfg.MaxPayloadBytes + envelopeSlack
	p := newPeer(conn, userID, locale, h.cfg.WriteTimeout)
	if !h.register(p) {
		p.close()
		return
	}
	defer h.unregister(p)

	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(h.cfg.FramesPerSecond), h.cfg.FramesPerSecond)
	decodeErrors := 0
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				decodeErrors++
				h.send(p, errorFrame("", codeInvalidArgument, "payload too large", false))
				if decodeErrors >= h.cfg.MaxDecodeErrors {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("websocket read ended", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}

		if !limiter.Allow() {
			h.send(p, errorFrame("", codeResourceExhausted, "rate limit exceeded", false))
			return
		}

		var in frame
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			decodeErrors++
			h.send(p, errorFrame("", codeInvalidArgument, "invalid frame payload", false))
			if decodeErrors >= h.cfg.MaxDecodeErrors {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(in.Payload) > h.cfg.MaxPayloadBytes {
			h.send(p, errorFrame(in.RequestID, codeInvalidArgument, "payload too large", false))
			continue
		}
		h.dispatch(ctx, p, in)
	}
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[p] = struct{}{}
	addPeer(h.users, p.userID, p)
	h.wg.Add(1)
	return true
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	removePeer(h.users, p.userID, p)
	for _, roomID := range p.roomIDs() {
		removePeer(h.rooms, roomID, p)
	}
	h.mu.Unlock()

	p.close()
	h.wg.Done()
}

func (h *Hub) join(roomID string, p *peer) {
	h.mu.Lock()
	addPeer(h.rooms, roomID, p)
	h.mu.Unlock()
	p.addRoom(roomID)
}

func (h *Hub) leave(roomID string, p *peer) bool {
	if !p.removeRoom(roomID) {
		return false
	}
	h.mu.Lock()
	removePeer(h.rooms, roomID, p)
	h.mu.Unlock()
	return true
}

func (h *Hub) roomPeers(roomID string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshot(h.rooms[roomID])
}

func (h *Hub) userPeers(userID string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshot(h.users[userID])
}

func (h *Hub) broadcast(peers []*peer, f frame) {
	for _, p := range peers {
		h.send(p, f)
	}
}

// send writes f to p. A failed write closes the connection so its read loop
// exits and the peer is unregistered.
func (h *Hub) send(p *peer, f frame) {
	if err := p.write(f); err != nil {
		h.logger.Debug("websocket write failed", zap.String("user_id", p.userID), zap.Error(err))
		p.close()
	}
}

func addPeer(index map[string]map[*peer]struct{}, key string, p *peer) {
	set, ok := index[key]
	if !ok {
		set = make(map[*peer]struct{})
		index[key] = set
	}
	set[p] = struct{}{}
}

func removePeer(index map[string]map[*peer]struct{}, key string, p *peer) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, p)
	if len(set) == 0 {
		delete(index, key)
	}
}

func snapshot(set map[*peer]struct{}) []*peer {
	out := make([]*peer, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
