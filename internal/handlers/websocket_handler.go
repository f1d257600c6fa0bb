package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"osgb/internal/services"
	"osgb/pkg/jwt"
	"osgb/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 120 * time.Second
	wsPingPeriod   = 50 * time.Second
)

// WebSocketHandler streams a tenant's visit events to browser clients.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	bus         *services.RedisEventBus
	log         *logrus.Logger
	jwtManager  *jwt.JWTManager
	userService *services.UserService
}

func NewWebSocketHandler(bus *services.RedisEventBus, jwtManager *jwt.JWTManager, userService *services.UserService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || matchOrigin(origin, allowed) {
						return true
					}
				}
				logger.GetLogger().Warnf("WebSocket connection rejected, origin not allowed: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 32,
		},
		bus:         bus,
		log:         logger.GetLogger(),
		jwtManager:  jwtManager,
		userService: userService,
	}
}

// VisitEvents upgrades the request and forwards visit events of the caller's
// tenant. Browsers cannot set headers on a websocket handshake, so the token
// comes from the query string.
func (h *WebSocketHandler) VisitEvents(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := h.jwtManager.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	user, err := h.userService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || !user.IsActive() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user is not active"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.log.WithFields(logrus.Fields{
		"tenant_id": user.TenantID,
		"user_id":   user.ID,
	}).Info("Visit event stream opened")

	h.forward(conn, user.TenantID)
}

func (h *WebSocketHandler) forward(conn *websocket.Conn, tenantID uint) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.bus.Subscribe(ctx, tenantID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.WithError(err).Error("Failed to subscribe to visit channel")
		return
	}

	go h.readPump(conn, cancel)

	ch := pubsub.Channel()
	pingTicker := time.NewTicker(wsPingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event services.VisitEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.log.WithError(err).Warn("Dropping malformed visit event")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.log.WithError(err).Debug("Visit event client went away")
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("WebSocket unexpected close")
			}
			return
		}
	}
}

// matchOrigin supports exact origins and *.example.com wildcards.
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if !strings.HasPrefix(allowed, "*.") {
		return false
	}
	domain := allowed[2:]

	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
