package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/medlemine/ashport/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB

	defaultBufferSize = 64
)

// Peer roles. A mobile client and an admin dashboard pair up under one email
// key; each message is forwarded to the opposite role.
const (
	RoleClient    = "client"
	RoleDashboard = "dashboard"
)

// Named events forwarded between client and dashboard. The relay never
// interprets them.
const (
	EventLoginAttempt = "login_attempt"
	EventOTPAttempt   = "otp_attempt"
	EventOTPResult    = "otp_result"
)

// Envelope is the unit the relay forwards. Data passes through opaque.
type Envelope struct {
	Event string          `json:"event"`
	Email string          `json:"email,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type peerKey struct {
	email string
	role  string
}

// Relay forwards events between a mobile client and an admin dashboard
// sharing one email key. Delivery is best effort: no queueing beyond the
// per-socket buffer, and messages sent while the counterpart is absent are
// dropped. Registering a second socket for the same (email, role) replaces
// the first.
type Relay struct {
	mu       sync.Mutex
	peers    map[peerKey]*peer
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewRelay constructs a relay with a same-origin-or-loopback upgrade policy.
func NewRelay() *Relay {
	return &Relay{
		peers: make(map[peerKey]*peer),
		log:   logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// ValidRole reports whether role names a known relay role.
func ValidRole(role string) bool {
	return role == RoleClient || role == RoleDashboard
}

// Serve upgrades the HTTP connection and registers it under (email, role),
// replacing any previous socket for that key. Blocks until the socket closes.
func (r *Relay) Serve(email, role string, w http.ResponseWriter, req *http.Request) {
	email = normalizeEmail(email)
	if email == "" || !ValidRole(role) {
		http.Error(w, "email and a valid role are required", http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	p := newPeer(r, conn, peerKey{email: email, role: role})
	r.register(p)

	go p.writeLoop()
	p.readLoop()
}

// Connected reports whether a socket is registered for (email, role).
func (r *Relay) Connected(email, role string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[peerKey{email: normalizeEmail(email), role: role}]
	return ok
}

// forward delivers an envelope from one side to the counterpart, if present.
func (r *Relay) forward(from peerKey, env Envelope) {
	target := peerKey{email: from.email, role: counterpart(from.role)}

	// The lock is held across the send so a concurrent close cannot shut the
	// channel between lookup and delivery.
	r.mu.Lock()
	p, ok := r.peers[target]
	if !ok {
		r.mu.Unlock()
		r.log.Debug("no counterpart, dropping event",
			zap.String("email", from.email),
			zap.String("event", env.Event))
		return
	}

	var backpressured bool
	select {
	case p.send <- env:
	default:
		backpressured = true
	}
	r.mu.Unlock()

	if backpressured {
		r.log.Warn("dropping backpressured peer",
			zap.String("email", target.email),
			zap.String("role", target.role))
		p.close()
	}
}

// register installs the peer, closing any previous socket for the same key.
func (r *Relay) register(p *peer) {
	r.mu.Lock()
	previous, replaced := r.peers[p.key]
	r.peers[p.key] = p
	r.mu.Unlock()

	if replaced {
		r.log.Info("replacing registered socket",
			zap.String("email", p.key.email),
			zap.String("role", p.key.role))
		previous.close()
	}
}

// unregister removes the peer unless a newer socket already took its key.
func (r *Relay) unregister(p *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.peers[p.key]; ok && current == p {
		delete(r.peers, p.key)
	}
}

type peer struct {
	relay  *Relay
	socket *websocket.Conn
	key    peerKey
	send   chan Envelope
	once   sync.Once
}

func newPeer(relay *Relay, conn *websocket.Conn, key peerKey) *peer {
	return &peer{
		relay:  relay,
		socket: conn,
		key:    key,
		send:   make(chan Envelope, defaultBufferSize),
	}
}

func (p *peer) readLoop() {
	defer p.close()

	p.socket.SetReadLimit(maxMessageSize)
	_ = p.socket.SetReadDeadline(time.Now().Add(pongWait))
	p.socket.SetPongHandler(func(string) error {
		_ = p.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := p.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.relay.log.Warn("unexpected close",
					zap.String("email", p.key.email),
					zap.String("role", p.key.role),
					zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			p.relay.log.Warn("invalid payload",
				zap.String("email", p.key.email),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(env.Event) == "" {
			continue
		}

		env.Email = p.key.email
		p.relay.forward(p.key, env)
	}
}

func (p *peer) writeLoop() {
	defer p.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-p.send:
			_ = p.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.socket.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		p.relay.unregister(p)
		close(p.send)
		_ = p.socket.Close()
	})
}

func counterpart(role string) string {
	if role == RoleClient {
		return RoleDashboard
	}
	return RoleClient
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
