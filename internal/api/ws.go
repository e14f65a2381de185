package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/quizdesk/internal/domain"
)

const writeWait = 10 * time.Second

type wsMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// WatchSession streams the countdown of the tab's session. The stream ends when the attempt completes or
// the session is closed.
func (a *API) WatchSession(c *gin.Context) {
	ss, err := a.ss.Session(tabID(c))
	if err != nil {
		abort(c, err)
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.WarnContext(c.Request.Context(), "api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	views, cancel := ss.Watch()
	defer cancel()

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(m wsMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}

	for {
		select {
		case <-gone:
			return
		case v, ok := <-views:
			if !ok {
				_ = write(wsMessage{Type: "closed"})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}

			msg := wsMessage{Type: "tick", Payload: toSession(v)}
			if v.Status != domain.StatusActive {
				msg.Type = "status"
			}
			if err := write(msg); err != nil {
				a.log.DebugContext(c.Request.Context(), "api: websocket write failed", "error", err)
				return
			}
		}
	}
}
