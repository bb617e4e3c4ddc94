// Package handlers carries the wire-facing surface: the websocket
// protocol handler and the health endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sage/internal/auth"
	"sage/internal/contextutil"
	"sage/internal/service"
)

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*auth.User, error)
}

// QueryStreamer answers queries and reports corpus stats.
type QueryStreamer interface {
	Stream(ctx context.Context, query, sessionID, userID string, emit func(fragment string) error) (*service.QueryStats, error)
	CorpusSize(ctx context.Context) (uint64, error)
}

type clientMessage struct {
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	Query     string `json:"query,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type loginResponse struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type logoutResponse struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

type queryResponse struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type statsMessage struct {
	Type       string  `json:"type"`
	ChunkCount uint64  `json:"chunk_count"`
	TTFB       float64 `json:"ttfb,omitempty"`
	Generation float64 `json:"generation,omitempty"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// WSHandler drives the persistent per-connection protocol: a client
// logs in, issues queries, receives streamed fragments, and logs out,
// all as JSON messages with a type discriminator.
type WSHandler struct {
	auth     Authenticator
	queries  QueryStreamer
	upgrader websocket.Upgrader
}

func NewWSHandler(auth Authenticator, queries QueryStreamer) *WSHandler {
	return &WSHandler{
		auth:    auth,
		queries: queries,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser and desktop-shell clients connect cross-origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Error("malformed client message", "error", err)
			if err := conn.WriteJSON(errorResponse{Type: "error", Error: "invalid message format"}); err != nil {
				return
			}
			continue
		}
		logger.Info("client message", "type", msg.Type)

		switch msg.Type {
		case "login":
			err = h.handleLogin(ctx, conn, msg)
		case "logout":
			err = h.handleLogout(conn, msg)
		case "query":
			err = h.handleQuery(ctx, conn, msg)
		default:
			err = conn.WriteJSON(errorResponse{Type: "error", Error: "unknown message type"})
		}
		if err != nil {
			logger.Error("connection failed", "type", msg.Type, "error", err)
			return
		}
	}
}

func (h *WSHandler) handleLogin(ctx context.Context, conn *websocket.Conn, msg clientMessage) error {
	logger := contextutil.LoggerFromContext(ctx)

	if msg.Username == "" || msg.Password == "" {
		return conn.WriteJSON(loginResponse{Type: "login_response", Error: "Invalid login data"})
	}

	user, err := h.auth.Authenticate(ctx, msg.Username, msg.Password)
	if err != nil {
		logger.Info("login failed", "username", msg.Username)
		return conn.WriteJSON(loginResponse{Type: "login_response", Error: "Invalid username or password"})
	}

	sessionID := strings.ReplaceAll(uuid.New().String(), "-", "")
	logger.Info("login successful", "username", user.Username)
	if err := conn.WriteJSON(loginResponse{
		Type:      "login_response",
		SessionID: sessionID,
		UserID:    user.Username,
		Message:   "Login successful",
	}); err != nil {
		return err
	}

	count, err := h.queries.CorpusSize(ctx)
	if err != nil {
		logger.Warn("failed to read corpus size", "error", err)
		return nil
	}
	return conn.WriteJSON(statsMessage{Type: "stats", ChunkCount: count})
}

// handleLogout acknowledges; sessions have no server-side storage to
// invalidate, they only scope history and fact records.
func (h *WSHandler) handleLogout(conn *websocket.Conn, msg clientMessage) error {
	if msg.SessionID == "" {
		return conn.WriteJSON(logoutResponse{Type: "logout_response", Error: "Not logged in"})
	}
	return conn.WriteJSON(logoutResponse{Type: "logout_response"})
}

func (h *WSHandler) handleQuery(ctx context.Context, conn *websocket.Conn, msg clientMessage) error {
	query := strings.TrimSpace(msg.Query)
	if query == "" {
		return conn.WriteJSON(queryResponse{Type: "query_response", Content: "No question provided.", Done: true})
	}

	stats, err := h.queries.Stream(ctx, query, msg.SessionID, msg.UserID, func(fragment string) error {
		return conn.WriteJSON(queryResponse{Type: "query_response", Content: fragment})
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return conn.WriteJSON(queryResponse{Type: "query_response", Content: "No question provided.", Done: true})
		}
		// The relay to this client failed; drop the connection.
		return err
	}

	if err := conn.WriteJSON(queryResponse{Type: "query_response", Done: true}); err != nil {
		return err
	}
	return conn.WriteJSON(statsMessage{
		Type:       "stats",
		ChunkCount: stats.ChunkCount,
		TTFB:       stats.TTFB.Seconds(),
		Generation: stats.Generation.Seconds(),
	})
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
