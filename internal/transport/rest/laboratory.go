package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/laboratory"
)

type laboratoryService interface {
	Create(ctx context.Context, owner auth.Identity, input laboratory.CreateInput) (*domain.Laboratory, error)
	Get(ctx context.Context, labID string) (*domain.Laboratory, error)
	ListForUser(ctx context.Context, uid string) ([]domain.Laboratory, error)
	JoinByCode(ctx context.Context, user auth.Identity, code string) (*domain.Laboratory, error)
	Leave(ctx context.Context, labID, uid string) error
	RemoveMember(ctx context.Context, labID, actorID, targetID string) error
	UpdatePermissions(ctx context.Context, labID, actorID, targetID string, perms domain.Permissions) (*domain.Laboratory, error)
	RegenerateInviteCode(ctx context.Context, labID, actorID string) (string, error)
	Watch(ctx context.Context, labID string) (<-chan domain.Laboratory, error)
}

type watchObserver interface {
	WatchOpened() func()
}

const (
	watchWriteWait  = 10 * time.Second
	watchPongWait   = 60 * time.Second
	watchPingPeriod = watchPongWait * 9 / 10
)

// LaboratoryHandler serves laboratories, membership and the live watch.
type LaboratoryHandler struct {
	labs     laboratoryService
	watchers watchObserver
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewLaboratoryHandler creates a LaboratoryHandler. checkOrigin decides
// which browser origins may open the watch socket.
func NewLaboratoryHandler(labs laboratoryService, watchers watchObserver, checkOrigin func(*http.Request) bool, log *slog.Logger) *LaboratoryHandler {
	return &LaboratoryHandler{
		labs:     labs,
		watchers: watchers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		log: log,
	}
}

// JoinRequest is the body of POST /laboratories/join.
type JoinRequest struct {
	InviteCode string `json:"inviteCode"`
}

// InviteCodeResponse carries a freshly generated invite code.
type InviteCodeResponse struct {
	InviteCode string `json:"inviteCode"`
}

func (h *LaboratoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input laboratory.CreateInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, _ := auth.IdentityFromCtx(r.Context())
	lab, err := h.labs.Create(r.Context(), id, input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, lab)
}

func (h *LaboratoryHandler) List(w http.ResponseWriter, r *http.Request) {
	labs, err := h.labs.ListForUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, labs)
}

// Get returns a laboratory to its members, or to anyone when it is public.
func (h *LaboratoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	lab, err := h.visible(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lab)
}

func (h *LaboratoryHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, _ := auth.IdentityFromCtx(r.Context())
	lab, err := h.labs.JoinByCode(r.Context(), id, req.InviteCode)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lab)
}

func (h *LaboratoryHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.labs.Leave(r.Context(), r.PathValue("id"), userID(r)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LaboratoryHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.labs.RemoveMember(r.Context(), r.PathValue("id"), userID(r), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LaboratoryHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var perms domain.Permissions
	if err := decodeJSON(w, r, &perms); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	lab, err := h.labs.UpdatePermissions(r.Context(), r.PathValue("id"), userID(r), r.PathValue("uid"), perms)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lab)
}

func (h *LaboratoryHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.labs.RegenerateInviteCode(r.Context(), r.PathValue("id"), userID(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, InviteCodeResponse{InviteCode: code})
}

// Watch upgrades to a websocket and pushes the laboratory as JSON every
// time it changes, starting with the current version. The socket is
// closed when the laboratory is deleted, or with 1008 once the watcher may
// no longer see it.
func (h *LaboratoryHandler) Watch(w http.ResponseWriter, r *http.Request) {
	lab, err := h.visible(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.log.DebugContext(r.Context(), "watch upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	defer h.watchers.WatchOpened()()
	uid := userID(r)

	// Detached from the request: the server's write timeout must not cut
	// long-lived streams. The reader goroutine cancels on disconnect.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	versions, err := h.labs.Watch(ctx, lab.ID)
	if err != nil {
		h.log.WarnContext(ctx, "watch start failed",
			slog.String("lab_id", lab.ID),
			slog.String("error", err.Error()),
		)
		closeSocket(conn, websocket.CloseInternalServerErr, "watch unavailable")
		return
	}

	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(watchPongWait)) //nolint:errcheck
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(watchPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(watchPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(watchWriteWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case v, ok := <-versions:
			if !ok {
				closeSocket(conn, websocket.CloseNormalClosure, "laboratory deleted")
				return
			}
			// Members who leave or are removed stop receiving updates.
			if !v.IsPublic && !v.IsMember(uid) {
				closeSocket(conn, websocket.ClosePolicyViolation, "no longer a member")
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				h.log.ErrorContext(ctx, "watch encode failed", slog.String("error", err.Error()))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(watchWriteWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (h *LaboratoryHandler) visible(r *http.Request) (*domain.Laboratory, error) {
	lab, err := h.labs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if !lab.IsPublic && !lab.IsMember(userID(r)) {
		return nil, domain.ErrNotMember
	}
	return lab, nil
}

func closeSocket(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(watchWriteWait)) //nolint:errcheck
}
