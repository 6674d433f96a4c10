package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/publisher"
	"bus_tracker/internal/tracking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 16
)

// ErrBroadcastFull is returned by Notify when the hub cannot keep up.
var ErrBroadcastFull = errors.New("location broadcast channel full")

// ClientGauge tracks the number of connected monitoring clients.
type ClientGauge interface {
	ClientConnected()
	ClientDisconnected()
}

type nopGauge struct{}

func (nopGauge) ClientConnected()    {}
func (nopGauge) ClientDisconnected() {}

// wsClient owns a connection. Only its writer goroutine writes to conn.
type wsClient struct {
	conn    *websocket.Conn
	routeID uint
	send    chan publisher.LocationMessage
}

// LocationHub fans bus updates out to websocket clients watching a route.
type LocationHub struct {
	routeClients map[uint]map[*wsClient]bool
	broadcast    chan publisher.LocationMessage
	done         chan struct{}
	closeOnce    sync.Once
	mu           sync.Mutex
	gauge        ClientGauge
	upgrader     websocket.Upgrader
}

// NewLocationHub creates a hub and starts its broadcast loop. A nil gauge is allowed.
func NewLocationHub(gauge ClientGauge, allowedOrigins []string) *LocationHub {
	if gauge == nil {
		gauge = nopGauge{}
	}
	hub := &LocationHub{
		routeClients: make(map[uint]map[*wsClient]bool),
		broadcast:    make(chan publisher.LocationMessage, 100),
		done:         make(chan struct{}),
		gauge:        gauge,
	}
	hub.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	go hub.run()
	return hub
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// run delivers broadcast messages to every client watching the message's route.
func (h *LocationHub) run() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.routeClients[msg.RouteID] {
				select {
				case client.send <- msg:
				default:
					logrus.WithFields(logrus.Fields{
						"route_id": msg.RouteID,
						"conn_ptr": fmt.Sprintf("%p", client.conn),
					}).Warn("Client send buffer full, dropping location update.")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Close stops the broadcast loop. Connected clients are left to their readers.
func (h *LocationHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *LocationHub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.routeClients[c.routeID]; !ok {
		h.routeClients[c.routeID] = make(map[*wsClient]bool)
	}
	h.routeClients[c.routeID][c] = true
	h.gauge.ClientConnected()
	logrus.WithFields(logrus.Fields{
		"route_id": c.routeID,
		"conn_ptr": fmt.Sprintf("%p", c.conn),
	}).Info("Client registered with LocationHub.")
}

func (h *LocationHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.routeClients[c.routeID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.routeClients, c.routeID)
	}
	close(c.send)
	h.gauge.ClientDisconnected()
	logrus.WithFields(logrus.Fields{
		"route_id": c.routeID,
		"conn_ptr": fmt.Sprintf("%p", c.conn),
	}).Info("Client unregistered from LocationHub.")
}

// ClientCount reports how many clients watch a route.
func (h *LocationHub) ClientCount(routeID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.routeClients[routeID])
}

// Notify implements tracking.Notifier. It never blocks on slow clients.
func (h *LocationHub) Notify(_ context.Context, ev tracking.Event) error {
	if ev.RouteID == 0 {
		return nil
	}
	select {
	case h.broadcast <- publisher.NewLocationMessage(ev):
		return nil
	default:
		return ErrBroadcastFull
	}
}

// HandleBusUpdates upgrades an authenticated request and streams updates for one route.
//
//	GET /ws/buses?token=<jwt>&route_id=<id>
func (h *LocationHub) HandleBusUpdates(auth *middleware.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			logrus.Warn("WebSocket connection attempt: Missing token query parameter.")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
			return
		}
		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			logrus.WithError(err).Warn("WebSocket connection attempt with invalid token.")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		routeID, err := strconv.ParseUint(c.Query("route_id"), 10, 64)
		if err != nil || routeID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "route_id query parameter is required"})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
			return
		}

		client := &wsClient{conn: conn, routeID: uint(routeID), send: make(chan publisher.LocationMessage, clientSendSize)}
		h.register(client)
		logrus.WithFields(logrus.Fields{
			"user_id":  claims.UserID,
			"role":     claims.Role,
			"route_id": routeID,
		}).Info("Monitoring WebSocket connection established.")

		go h.writeLoop(client)
		h.readLoop(client)
	}
}

// readLoop drains control frames until the peer goes away.
func (h *LocationHub) readLoop(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("route_id", c.routeID).Warn("Error reading from monitoring WebSocket.")
			}
			return
		}
		logrus.WithField("route_id", c.routeID).Debug("Monitoring client sent unexpected message. Ignoring.")
	}
}

func (h *LocationHub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logrus.WithError(err).WithField("route_id", c.routeID).Warn("Failed to send location update to client.")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
