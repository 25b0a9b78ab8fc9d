// internal/handlers/ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/keldurben/internal/auth"
	"github.com/jason-s-yu/keldurben/internal/hub"
	"github.com/jason-s-yu/keldurben/internal/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// TokenVerifier turns a bearer credential into an identity.
type TokenVerifier interface {
	AuthenticateJWT(token string) (auth.Identity, error)
}

// WSOptions tunes the game socket.
type WSOptions struct {
	// OriginPatterns are host patterns accepted for cross-origin upgrades. Empty accepts any origin.
	OriginPatterns []string
	RequireAuth    bool
	// MsgRate is inbound messages per second; 0 disables limiting.
	MsgRate    float64
	MsgBurst   int
	SendBuffer int
}

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
)

// WSHandler upgrades the request and runs one connection against the hub until it closes.
func WSHandler(logger *logrus.Logger, h *hub.Hub, tokens TokenVerifier, opts WSOptions) http.HandlerFunc {
	origins := opts.OriginPatterns
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: origins,
		})
		if err != nil {
			logger.WithError(err).Warn("websocket accept error")
			return
		}
		defer c.CloseNow()

		if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the "+Subprotocol+" subprotocol")
			return
		}

		userID := uuid.Nil
		if token := tokenFromRequest(r); token != "" {
			ident, err := tokens.AuthenticateJWT(token)
			if err != nil {
				logger.WithError(err).WithField("remote", r.RemoteAddr).Warn("websocket auth failed")
				c.Close(InvalidAuthTokenError, "invalid auth token")
				return
			}
			userID = ident.UserID
		} else if opts.RequireAuth {
			c.Close(InvalidAuthTokenError, "auth token required")
			return
		}

		limiter := rate.NewLimiter(rate.Inf, 0)
		if opts.MsgRate > 0 {
			limiter = rate.NewLimiter(rate.Limit(opts.MsgRate), max(opts.MsgBurst, 1))
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := hub.NewConnection(userID, opts.SendBuffer, cancel)
		h.Register(conn)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writePump(ctx, c, conn, logger)
		}()

		readErr := readPump(ctx, c, h, conn, limiter, logger)

		// Disconnect closes conn.Out, so the writer drains what is queued and stops.
		h.Disconnect(conn.ID)
		<-writerDone
		cancel()

		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes inbound frames and dispatches them until the socket fails.
// It returns nil for a clean close.
func readPump(ctx context.Context, c *websocket.Conn, h *hub.Hub, conn *hub.Connection, limiter *rate.Limiter, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			h.SendError(conn.ID, "bad json: expected a text frame")
			continue
		}
		if !limiter.Allow() {
			h.SendError(conn.ID, "rate limited")
			continue
		}

		cmd, err := hub.DecodeCommand(msg)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"conn":   conn.ID,
				"userID": conn.UserID,
			}).WithError(err).Debug("undecodable message")
			h.SendError(conn.ID, err.Error())
			continue
		}
		h.Dispatch(conn.ID, cmd)
	}
}

// writePump writes queued frames in order and pings on a timer. It returns when the
// queue is closed, the context ends, or a write fails.
func writePump(ctx context.Context, c *websocket.Conn, conn *hub.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Out:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				logger.WithError(err).WithField("conn", conn.ID).Debug("websocket write failed")
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).WithField("conn", conn.ID).Debug("websocket ping failed")
				conn.Cancel()
				return
			}
		}
	}
}
