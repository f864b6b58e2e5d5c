package ws

import (
	"context"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"intersection/server/internal/net/proto"
	"intersection/server/internal/sim"
	"intersection/server/internal/state"
	"intersection/server/logging"
	loggingNetwork "intersection/server/logging/network"
)

const disconnectReasonClosed = "closed"

// Loop is the part of the simulation loop the transport talks to.
type Loop interface {
	Connect(ctx context.Context, role state.Role, session sim.Session) (string, error)
	Enqueue(cmd sim.Command) (bool, string)
	Disconnect(id, reason string) error
}

type HandlerConfig struct {
	Logger    *log.Logger
	Publisher logging.Publisher
	Clock     logging.Clock
	SendQueue int
}

type Handler struct {
	loop      Loop
	logger    *log.Logger
	publisher logging.Publisher
	clock     logging.Clock
	queue     int
	upgrader  websocket.Upgrader
}

func NewHandler(loop Loop, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		loop:      loop,
		logger:    logger,
		publisher: publisher,
		clock:     clock,
		queue:     cfg.SendQueue,
		upgrader:  upgrader,
	}
}

// Handle upgrades the request and serves the connection until it closes.
// The role comes from the role query parameter; anything but "observer"
// joins as a participant.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h == nil || h.loop == nil {
		nethttp.Error(w, "simulation unavailable", nethttp.StatusServiceUnavailable)
		return
	}
	role := state.ParseRole(r.URL.Query().Get("role"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	sess := newSession(conn, h.queue)
	go sess.writePump()

	id, err := h.loop.Connect(r.Context(), role, sess)
	if err != nil {
		h.logger.Printf("connect failed for %s: %v", r.RemoteAddr, err)
		sess.Close("unavailable")
		return
	}
	defer func() {
		if err := h.loop.Disconnect(id, disconnectReasonClosed); err != nil {
			h.logger.Printf("disconnect failed for %s: %v", id, err)
		}
	}()

	h.readLoop(id, role, conn, sess, logging.WithFields(h.publisher, map[string]any{"remote": r.RemoteAddr}))
}

func (h *Handler) readLoop(id string, role state.Role, conn *websocket.Conn, sess *session, publisher logging.Publisher) {
	actor := logging.EntityRef{ID: id, Kind: logging.EntityKindParticipant}
	if role == state.RoleObserver {
		actor.Kind = logging.EntityKindObserver
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			sess.Close(closeReasonReadClosed)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := proto.Decode(payload)
		if err != nil {
			loggingNetwork.MalformedMessage(context.Background(), publisher, actor, loggingNetwork.MalformedMessagePayload{
				Bytes:  len(payload),
				Reason: err.Error(),
			}, nil)
			continue
		}
		cmd, ok := proto.ClientCommand(msg)
		if !ok {
			continue
		}
		now := h.clock.Now()
		cmd.ActorID = id
		cmd.IssuedAt = now
		if cmd.Heartbeat != nil {
			cmd.Heartbeat.ReceivedAt = now
		}
		h.loop.Enqueue(cmd)
	}
}
