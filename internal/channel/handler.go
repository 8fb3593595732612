package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	httpmiddleware "github.com/wolfman30/cardio-intake/internal/http/middleware"
	"github.com/wolfman30/cardio-intake/internal/intake"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

const outboundBuffer = 16

// Handler serves patient chat connections.
type Handler struct {
	conv     Conversation
	logger   *logging.Logger
	origins  httpmiddleware.OriginPolicy
	restrict bool
	now      func() time.Time

	mu    sync.RWMutex
	conns map[string]*client // channelID -> live connection
}

type client struct {
	id   string
	conn *websocket.Conn
	out  chan OutboundFrame
	done chan struct{}
}

// NewHandler creates a chat handler. An empty origins list accepts any
// Origin header.
func NewHandler(conv Conversation, origins []string, logger *logging.Logger) *Handler {
	if conv == nil {
		panic("channel: conversation cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		conv:     conv,
		logger:   logger,
		origins:  httpmiddleware.NewOriginPolicy(origins),
		restrict: len(origins) > 0,
		now:      time.Now,
		conns:    make(map[string]*client),
	}
}

// HandleWebSocket upgrades to WebSocket and runs the chat loop.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Server{
		Handshake: h.checkOrigin,
		Handler:   h.serveWS,
	}.ServeHTTP(w, r)
}

func (h *Handler) checkOrigin(cfg *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil {
			return fmt.Errorf("channel: bad origin %q: %w", origin, err)
		}
		cfg.Origin = u
	}
	if !h.restrict || h.origins.Allows(origin) {
		return nil
	}
	return fmt.Errorf("channel: origin %q not allowed", origin)
}

func (h *Handler) serveWS(conn *websocket.Conn) {
	ctx := conn.Request().Context()
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan OutboundFrame, outboundBuffer),
		done: make(chan struct{}),
	}
	log := h.logger.With("channel_id", c.id)

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		h.writeLoop(c, log)
	}()

	h.register(c)
	defer func() {
		h.unregister(c)
		h.conv.OnSessionEnd(context.WithoutCancel(ctx), c.id)
		close(c.done)
		writer.Wait()
		log.Info("chat connection closed")
	}()

	log.Info("chat connection opened")
	h.send(c, OutboundFrame{Type: EventSession, SessionID: c.id})

	greeting, err := h.conv.OnSessionStart(ctx, c.id)
	if err != nil {
		log.Warn("session start degraded", "error", err)
	}
	h.send(c, h.botMessage(greeting, "text"))

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if isDecodeError(err) {
				log.Warn("malformed chat frame", "error", err)
				h.send(c, h.botMessage(intake.ChannelErrorMessage, "error"))
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Debug("chat read failed", "error", err)
			}
			return
		}
		h.dispatch(ctx, c, frame, log)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *client, frame InboundFrame, log *logging.Logger) {
	switch frame.Type {
	case EventChatMessage:
		if strings.TrimSpace(frame.Message) == "" {
			return
		}
		h.trySend(c, OutboundFrame{Type: EventBotTyping, Timestamp: h.stamp()})
		if reply, ok := h.conv.OnMessage(ctx, c.id, frame.Message); ok {
			h.send(c, h.botMessage(reply, "text"))
		}
	case EventAttachPatient:
		_, err := h.conv.AttachPatient(ctx, c.id, patients.Details{
			Name:  frame.FullName,
			Email: frame.Email,
			Phone: frame.Phone,
		})
		switch {
		case errors.Is(err, intake.ErrNothingToAttach):
		case err != nil:
			log.Warn("attach patient failed", "error", err)
			h.send(c, h.botMessage(intake.AttachFailedMessage, "error"))
		}
	case EventTyping:
		h.broadcastTyping(c, frame.Timestamp)
	case EventPing:
		h.send(c, OutboundFrame{Type: EventPong})
	default:
		log.Debug("ignoring chat frame", "type", frame.Type)
	}
}

func (h *Handler) writeLoop(c *client, log *logging.Logger) {
	for {
		select {
		case frame := <-c.out:
			if err := websocket.JSON.Send(c.conn, frame); err != nil {
				log.Debug("chat write failed", "error", err)
			}
		case <-c.done:
			for {
				select {
				case frame := <-c.out:
					_ = websocket.JSON.Send(c.conn, frame)
				default:
					return
				}
			}
		}
	}
}

// send queues a frame for the client, waiting for buffer space.
func (h *Handler) send(c *client, frame OutboundFrame) {
	select {
	case c.out <- frame:
	case <-c.done:
	}
}

// trySend queues a frame only if there is room.
func (h *Handler) trySend(c *client, frame OutboundFrame) {
	select {
	case c.out <- frame:
	default:
	}
}

func (h *Handler) broadcastTyping(from *client, ts string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.conns {
		if id == from.id {
			continue
		}
		h.trySend(c, OutboundFrame{Type: EventUserTyping, UserID: from.id, Timestamp: ts})
	}
}

func (h *Handler) register(c *client) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Handler) unregister(c *client) {
	h.mu.Lock()
	if h.conns[c.id] == c {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()
}

// Connections returns the number of live chat connections.
func (h *Handler) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Handler) botMessage(text, kind string) OutboundFrame {
	return OutboundFrame{Type: EventBotMessage, Message: text, MessageType: kind, Timestamp: h.stamp()}
}

func (h *Handler) stamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

func isDecodeError(err error) bool {
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &typeErr)
}
