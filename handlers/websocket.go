package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/audit"
	"github.com/Nilscreate/websitecrawltool/logging"
)

// StageReport carries the finished report as the last websocket message
const StageReport = "report"

const (
	writeWait    = 10 * time.Second
	requestWait  = 30 * time.Second
	maxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type socketMessage struct {
	audit.Event
	Report *audit.Report `json:"report,omitempty"`
}

// auditSocket reads one {url, limit} request, streams progress events and
// finishes with the report or a failed event.
func (h *Handler) auditSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(requestWait))

	var req auditRequest
	if err := conn.ReadJSON(&req); err != nil || req.URL == "" {
		h.send(conn, socketMessage{Event: audit.Event{Stage: audit.StageFailed, Message: "Request must include url"}})
		return
	}

	limit, err := h.clampLimit(req.Limit)
	if err != nil {
		h.send(conn, socketMessage{Event: audit.Event{Stage: audit.StageFailed, Message: err.Error()}})
		return
	}

	r, err := h.audits.Run(c.Request.Context(), req.URL, limit, func(e audit.Event) {
		h.send(conn, socketMessage{Event: e})
	})
	if err != nil {
		// the service already emitted the failed event
		return
	}
	h.send(conn, socketMessage{Event: audit.Event{Stage: StageReport, Done: len(r.Pages), Total: len(r.Pages)}, Report: r})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
}

func (h *Handler) send(conn *websocket.Conn, msg socketMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		logging.Log.Debug("WebSocket write failed", zap.Error(err))
	}
}
