package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
	"github.com/AnshRaj112/planpal-backend/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 60 * time.Second
)

var sessionUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced at the HTTP layer; the session token authenticates.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// outbox queues messages for the connection's writer. push never blocks, so
// it is safe to call from Mount callbacks.
type outbox struct {
	mu     sync.Mutex
	queue  []models.SessionServerMessage
	notify chan struct{}
}

func newOutbox() *outbox {
	return &outbox{notify: make(chan struct{}, 1)}
}

func (o *outbox) push(m models.SessionServerMessage) {
	o.mu.Lock()
	o.queue = append(o.queue, m)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *outbox) drain() []models.SessionServerMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.queue
	o.queue = nil
	return out
}

func stateMessage(s session.State) models.SessionServerMessage {
	user := s.User
	return models.SessionServerMessage{
		Type:    models.SessionMessageState,
		Status:  string(s.Status),
		User:    &user,
		Profile: s.Record,
		Message: s.Message,
	}
}

// SessionWebSocket streams the caller's session state. Every change is sent
// as a "state" message and each sign-out as one "redirect" to the login
// route. Clients may send save_profile and upload_avatar.
func (h *Handler) SessionWebSocket(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)

	conn, err := sessionUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := newOutbox()
	go h.writeSession(ctx, cancel, conn, out)

	v := h.openView(ctx, token,
		func(s session.State) { out.push(stateMessage(s)) },
		func(route string) {
			out.push(models.SessionServerMessage{Type: models.SessionMessageRedirect, To: route})
		},
	)
	defer v.close()

	readLimit := int64(64 * 1024)
	if h.maxUpload > 0 {
		readLimit = dataURLBudget(h.maxUpload)
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("session websocket closed", "error", err)
			}
			return
		}

		var msg models.SessionClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			out.push(models.SessionServerMessage{Type: models.SessionMessageError, Error: "Invalid message"})
			continue
		}

		switch msg.Type {
		case models.SessionActionSaveProfile:
			out.push(h.saveProfileMessage(ctx, v, msg))
		case models.SessionActionUploadAvatar:
			out.push(h.uploadAvatarMessage(ctx, v, msg))
		case "ping":
		default:
			out.push(models.SessionServerMessage{Type: models.SessionMessageError, Error: "Unknown message type"})
		}
	}
}

func (h *Handler) writeSession(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out *outbox) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	fail := func() {
		cancel()
		conn.Close()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail()
				return
			}
		case <-out.notify:
			for _, m := range out.drain() {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(m); err != nil {
					fail()
					return
				}
			}
		}
	}
}

func (h *Handler) saveProfileMessage(ctx context.Context, v *view, msg models.SessionClientMessage) models.SessionServerMessage {
	if msg.Profile == nil {
		return models.SessionServerMessage{Type: models.SessionMessageError, Error: "No profile fields provided."}
	}
	if err := h.validate.Struct(msg.Profile); err != nil {
		return models.SessionServerMessage{Type: models.SessionMessageError, Error: "Invalid profile data."}
	}
	patch := msg.Profile.Patch()
	if patch.IsEmpty() {
		return models.SessionServerMessage{Type: models.SessionMessageError, Error: "No profile fields provided."}
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if err := v.mount.SaveProfile(ctx, patch); err != nil {
		return models.SessionServerMessage{Type: models.SessionMessageError, Error: saveErrorText(err)}
	}
	return models.SessionServerMessage{Type: models.SessionMessageSaved, Message: "Profile saved."}
}

func (h *Handler) uploadAvatarMessage(ctx context.Context, v *view, msg models.SessionClientMessage) models.SessionServerMessage {
	_, data, err := relay.DecodeDataURL(msg.Image)
	if err != nil || len(data) == 0 {
		return models.SessionServerMessage{Type: models.SessionMessageError, Error: "No image provided"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*requestTimeout)
	defer cancel()
	url, err := v.mount.SaveAvatar(ctx, data)
	if err != nil {
		var rerr *relay.Error
		if errors.As(err, &rerr) {
			h.logger.Warn("avatar upload failed", "kind", rerr.Kind.String(), "error", err)
			return models.SessionServerMessage{Type: models.SessionMessageError, Error: rerr.Message()}
		}
		return models.SessionServerMessage{Type: models.SessionMessageError, Error: saveErrorText(err)}
	}
	return models.SessionServerMessage{Type: models.SessionMessageAvatar, URL: url}
}

func saveErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrSignedOut):
		return "Unauthorized"
	case errors.Is(err, session.ErrUnmounted):
		return "Session closed."
	default:
		return "Failed to save profile."
	}
}
