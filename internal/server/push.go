package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"checkexplorer/internal/explorer"
)

const viewWriteTimeout = 5 * time.Second

var viewUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// handleViewWS pushes the session view on connect and then every push
// interval until the client goes away or the session is deleted.
func (s *Server) handleViewWS(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := viewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveViewConnection(conn, session)
}

func (s *Server) serveViewConnection(conn *websocket.Conn, session *explorer.Session) {
	defer conn.Close()

	if err := writeViewPayload(conn, session.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if _, err := s.registry.Get(session.ID()); err != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(viewWriteTimeout))
				return
			}
			if err := writeViewPayload(conn, session.Snapshot()); err != nil {
				s.log.Debug("view push failed", zap.String("session", session.ID()), zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func writeViewPayload(conn *websocket.Conn, payload explorer.View) error {
	_ = conn.SetWriteDeadline(time.Now().Add(viewWriteTimeout))
	return conn.WriteJSON(payload)
}
