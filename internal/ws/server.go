package ws

import (
	"errors"
	"net/http"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/config"
	"delixmi-order-services/internal/middleware"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Hub    *Hub
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	return &Server{DB: db, Logger: logger, Config: cfg, Hub: NewHub(logger)}
}

func connectionError(conn *websocket.Conn, code, message string) {
	_ = conn.WriteJSON(NewEvent("CONNECTION_ERROR", map[string]any{
		"code":    code,
		"message": message,
	}))
	_ = conn.Close()
}

// Connect is the single realtime endpoint. The client presents a bearer token
// in the handshake (query `token` or Authorization header); the server
// resolves the principal's role bindings and decides the rooms.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	token := r.URL.Query().Get("token")
	if bearer := auth.ParseBearerToken(r.Header.Get("Authorization")); bearer != "" {
		token = bearer
	}

	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenMissing):
			connectionError(conn, "MISSING_TOKEN", "Authorization token required")
		case errors.Is(err, auth.ErrTokenExpired):
			connectionError(conn, "TOKEN_EXPIRED", "Authorization token expired")
		default:
			connectionError(conn, "INVALID_TOKEN", "Authorization token invalid")
		}
		return
	}

	principal, err := middleware.LoadPrincipal(r.Context(), s.DB, claims.UserID)
	if err != nil {
		connectionError(conn, "INVALID_TOKEN", "Authorization token invalid")
		return
	}
	if !principal.IsActive {
		connectionError(conn, "ACCOUNT_INACTIVE", "Account is inactive")
		return
	}

	rooms := RoomsForPrincipal(principal)

	c := &client{conn: conn}
	leave := s.Hub.join(rooms, c)
	defer leave()
	defer conn.Close()

	_ = c.writeJSON(NewEvent("CONNECTION_ESTABLISHED", map[string]any{
		"rooms": rooms,
	}))

	ctx := r.Context()
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	select {
	case <-clientClosed:
		return
	case <-ctx.Done():
		return
	}
}

// RoomsForPrincipal: restaurant staff join their restaurant rooms; everyone
// joins their own user room (couriers receive dispatch fan-out there).
func RoomsForPrincipal(p *auth.Principal) []string {
	rooms := []string{UserRoom(p.UserID)}
	seen := map[string]struct{}{rooms[0]: {}}

	staffRoles := []auth.Role{auth.RoleOwner, auth.RoleBranchManager, auth.RoleOrderManager, auth.RoleKitchenStaff}
	for _, restaurantID := range p.RestaurantIDs(staffRoles...) {
		room := RestaurantRoom(restaurantID)
		if _, ok := seen[room]; !ok {
			seen[room] = struct{}{}
			rooms = append(rooms, room)
		}
	}
	return rooms
}
