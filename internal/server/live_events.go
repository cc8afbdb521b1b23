package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/smallbiznis/carepoints/internal/liveevents"
	"github.com/smallbiznis/carepoints/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.allowedOrigin,
	}
}

func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSAllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return strings.EqualFold(origin, "http://"+r.Host) || strings.EqualFold(origin, "https://"+r.Host)
}

// StreamUserEvents pushes the caller's gamification events over a websocket.
// Recent events are replayed on connect.
func (s *Server) StreamUserEvents(c *gin.Context) {
	if s.liveEvents == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, backlog, err := s.liveEvents.Subscribe(userID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer subscription.Close()

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the handshake error.
		return
	}
	defer conn.Close()

	log := logger.FromContext(c.Request.Context()).With(zap.String("user_id", userID.String()))
	log.Debug("live events connected", zap.Int("backlog", len(backlog)))

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	for _, event := range backlog {
		if err := writeLiveEvent(conn, event); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.Debug("live events disconnected")
			return
		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			if err := writeLiveEvent(conn, event); err != nil {
				log.Debug("live events write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are handled.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeLiveEvent(conn *websocket.Conn, event liveevents.LiveEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}
