package dashboard

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"modscout/internal/pipeline"
	"modscout/logger"
)

const socketWriteWait = 5 * time.Second

// socketMessage is one frame on /ws/search. Type is progress, result or error.
type socketMessage struct {
	Type     string                  `json:"type"`
	Progress *pipeline.ProgressEvent `json:"progress,omitempty"`
	Result   interface{}             `json:"result,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// handleSearchSocket runs the search named by ?locations= and streams a frame
// per finished order book, then the result, then closes.
func (s *Server) handleSearchSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithComponent("web").WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.WithComponent("web").WithFields(logger.Fields{"remote": c.ClientIP()})
	query := c.Query("locations")

	writeFailed := false
	send := func(msg socketMessage) {
		if writeFailed {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			writeFailed = true
			log.WithError(err).Debug("websocket write failed")
		}
	}

	result, _, err := s.search(c.Request.Context(), query, func(ev pipeline.ProgressEvent) {
		send(socketMessage{Type: "progress", Progress: &ev})
	})
	if err != nil {
		send(socketMessage{Type: "error", Error: userMessage(err)})
	} else {
		send(socketMessage{Type: "result", Result: searchPayload(result)})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(socketWriteWait))
}
