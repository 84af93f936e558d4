package ws

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"truco/internal/app"
	"truco/internal/domain"
	"truco/internal/lobby"
	"truco/internal/match"
	"truco/internal/ports"
)

// Handler accepts websocket connections and routes their messages into the
// engine's action surface.
type Handler struct {
	svc   *app.Service
	coord *lobby.Coordinator
	users ports.UserDirectory

	originPatterns []string

	mu      sync.RWMutex
	lobbies map[string]*lobby.Lobby // code -> forming lobby

	log zerolog.Logger
}

// NewHandler wires the websocket transport.
func NewHandler(svc *app.Service, coord *lobby.Coordinator, users ports.UserDirectory,
	allowOrigins []string, log zerolog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		coord:          coord,
		users:          users,
		originPatterns: originPatterns(allowOrigins),
		lobbies:        map[string]*lobby.Lobby{},
		log:            log.With().Str("component", "ws").Logger(),
	}
}

// originPatterns strips schemes from configured origins, since the accept
// options match on host patterns only.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "" {
			continue
		}
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		patterns = append(patterns, o)
	}
	return patterns
}

// session tracks what one connection represents once it has joined.
type session struct {
	username string
	guest    bool
	playerID int64
	code     string
}

// ServeWS upgrades the request and runs the connection's read loop until it
// drops. Seats and matches held by the connection are released on the way
// out.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket accept rejected")
		return
	}

	ctx := r.Context()
	conn := newConn(randID(), sock)
	go conn.writeLoop(ctx)
	h.log.Info().Str("conn", conn.id).Msg("client connected")

	sess := &session{}
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			break
		}
		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if err := h.dispatch(ctx, conn, sess, msg); err != nil {
			h.reply(ctx, conn, "error", map[string]any{"message": err.Error()})
		}
	}

	h.teardown(conn, sess)
	h.log.Info().Str("conn", conn.id).Msg("client disconnected")
}

// teardown releases whatever the connection still holds.
func (h *Handler) teardown(conn *Conn, sess *session) {
	conn.close()
	if sess.code == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	err := h.svc.LeaveMatch(ctx, sess.code, sess.playerID)
	if errors.Is(err, app.ErrMatchNotFound) {
		// still in the lobby phase
		if l := h.lobbyFor(sess.code); l != nil {
			h.svc.LeaveLobby(l, sess.username, conn)
			if len(l.Members) == 0 {
				h.dropLobby(sess.code)
				h.coord.RemoveCode(sess.code)
			}
		}
		return
	}
	h.dropLobby(sess.code)
}

func (h *Handler) dispatch(ctx context.Context, conn *Conn, sess *session, msg Msg) error {
	switch msg.T {
	case "create_lobby":
		return h.createLobby(ctx, conn, sess, msg.M)
	case "join_lobby":
		return h.joinLobby(ctx, conn, sess, msg.M)
	case "leave_lobby":
		return h.leaveLobby(conn, sess)
	case "start_match":
		return h.startMatch(ctx, conn, sess)
	case "play_card":
		var p struct {
			Card string `json:"card"`
		}
		if err := json.Unmarshal(msg.M, &p); err != nil {
			return err
		}
		card, err := domain.ParseCard(p.Card)
		if err != nil {
			return err
		}
		return h.svc.PlayCard(ctx, sess.code, sess.playerID, card)
	case "call_truco":
		var p struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal(msg.M, &p); err != nil {
			return err
		}
		level, err := trucoLevelFrom(p.Level)
		if err != nil {
			return err
		}
		return h.svc.CallTruco(ctx, sess.code, sess.playerID, level)
	case "respond_truco":
		var p struct {
			Accept bool `json:"accept"`
		}
		if err := json.Unmarshal(msg.M, &p); err != nil {
			return err
		}
		return h.svc.RespondTruco(ctx, sess.code, sess.playerID, p.Accept)
	case "call_envido":
		var p struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal(msg.M, &p); err != nil {
			return err
		}
		level, err := envidoLevelFrom(p.Level)
		if err != nil {
			return err
		}
		return h.svc.CallEnvido(ctx, sess.code, sess.playerID, level)
	case "respond_envido":
		var p struct {
			Accept bool `json:"accept"`
		}
		if err := json.Unmarshal(msg.M, &p); err != nil {
			return err
		}
		return h.svc.RespondEnvido(ctx, sess.code, sess.playerID, p.Accept)
	case "call_flor":
		return h.svc.CallFlor(ctx, sess.code, sess.playerID)
	case "respond_flor":
		var p struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(msg.M, &p); err != nil {
			return err
		}
		switch resp := match.FlorResponse(p.Response); resp {
		case match.FlorReject, match.FlorContra:
			return h.svc.RespondFlor(ctx, sess.code, sess.playerID, resp)
		default:
			return fmt.Errorf("unknown flor response %q", p.Response)
		}
	case "go_to_deck":
		return h.svc.GoToDeck(ctx, sess.code, sess.playerID)
	case "chat":
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.M, &p); err != nil {
			return err
		}
		if p.Text == "" {
			return nil
		}
		return h.svc.Chat(ctx, sess.code, sess.username, p.Text)
	case "pong":
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.T)
	}
}

func (h *Handler) createLobby(ctx context.Context, conn *Conn, sess *session, raw json.RawMessage) error {
	var p struct {
		Username string `json:"username"`
		Guest    bool   `json:"guest"`
		Capacity int    `json:"capacity"`
		Public   bool   `json:"public"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if p.Username == "" {
		return errors.New("username required")
	}
	if p.Capacity != 2 && p.Capacity != 4 {
		return lobby.ErrBadCapacity
	}

	code, err := h.coord.NewMatchCode()
	if err != nil {
		return err
	}
	l := &lobby.Lobby{
		ID:       uuid.New(),
		Code:     code,
		Owner:    p.Username,
		Capacity: p.Capacity,
		Public:   p.Public,
	}
	if err := h.coord.RegisterCode(code, l.ID); err != nil {
		return err
	}
	h.mu.Lock()
	h.lobbies[code] = l
	h.mu.Unlock()

	if err := h.seat(ctx, conn, sess, l, p.Username, p.Guest); err != nil {
		h.dropLobby(code)
		h.coord.RemoveCode(code)
		return err
	}
	h.reply(ctx, conn, "lobby_created", map[string]any{"code": code, "capacity": p.Capacity})
	return nil
}

func (h *Handler) joinLobby(ctx context.Context, conn *Conn, sess *session, raw json.RawMessage) error {
	var p struct {
		Code     string `json:"code"`
		Username string `json:"username"`
		Guest    bool   `json:"guest"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if p.Username == "" {
		return errors.New("username required")
	}
	l := h.lobbyFor(p.Code)
	if l == nil {
		return lobby.ErrUnknownCode
	}
	if err := h.seat(ctx, conn, sess, l, p.Username, p.Guest); err != nil {
		return err
	}
	h.reply(ctx, conn, "lobby_joined", map[string]any{"code": l.Code})
	return nil
}

// seat resolves the participant id, admits the player and binds the
// connection to the lobby's code.
func (h *Handler) seat(ctx context.Context, conn *Conn, sess *session, l *lobby.Lobby, username string, guest bool) error {
	var playerID int64
	if guest {
		if !strings.HasPrefix(username, lobby.GuestPrefix) {
			username = lobby.GuestPrefix + username
		}
		playerID = lobby.GuestID(username)
	} else {
		id, err := h.users.LookupID(ctx, username)
		if err != nil {
			return err
		}
		playerID = id
	}
	if err := h.svc.JoinLobby(ctx, l, username, guest, conn); err != nil {
		return err
	}
	sess.username = username
	sess.guest = guest
	sess.playerID = playerID
	sess.code = l.Code
	return nil
}

func (h *Handler) leaveLobby(conn *Conn, sess *session) error {
	if sess.code == "" {
		return errors.New("not in a lobby")
	}
	l := h.lobbyFor(sess.code)
	if l == nil {
		return lobby.ErrUnknownCode
	}
	h.svc.LeaveLobby(l, sess.username, conn)
	if len(l.Members) == 0 {
		h.dropLobby(sess.code)
		h.coord.RemoveCode(sess.code)
	}
	sess.code = ""
	return nil
}

func (h *Handler) startMatch(ctx context.Context, conn *Conn, sess *session) error {
	if sess.code == "" {
		return errors.New("not in a lobby")
	}
	l := h.lobbyFor(sess.code)
	if l == nil {
		return lobby.ErrUnknownCode
	}
	if l.Owner != sess.username {
		return errors.New("only the lobby owner can start the match")
	}
	// The starter closes the lobby under its lock before resolving seats.
	return h.svc.StartMatch(ctx, l)
}

func (h *Handler) lobbyFor(code string) *lobby.Lobby {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lobbies[code]
}

func (h *Handler) dropLobby(code string) {
	h.mu.Lock()
	delete(h.lobbies, code)
	h.mu.Unlock()
}

// reply sends a direct message to one connection, best effort.
func (h *Handler) reply(ctx context.Context, conn *Conn, event string, payload any) {
	if err := conn.Send(ctx, ports.Notice{Event: event, Payload: payload}); err != nil {
		h.log.Debug().Err(err).Str("conn", conn.id).Str("event", event).Msg("reply dropped")
	}
}

func trucoLevelFrom(s string) (domain.TrucoLevel, error) {
	switch s {
	case "truco":
		return domain.TrucoCalled, nil
	case "retruco":
		return domain.Retruco, nil
	case "vale_cuatro":
		return domain.ValeCuatro, nil
	}
	return domain.TrucoNone, fmt.Errorf("unknown truco level %q", s)
}

func envidoLevelFrom(s string) (domain.EnvidoLevel, error) {
	switch s {
	case "envido":
		return domain.Envido, nil
	case "real_envido":
		return domain.RealEnvido, nil
	case "falta_envido":
		return domain.FaltaEnvido, nil
	}
	return domain.EnvidoNone, fmt.Errorf("unknown envido level %q", s)
}

func randID() string {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return hex.EncodeToString(b[:])
}
