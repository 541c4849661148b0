package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/errors"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operators connect from the dashboard origin, which sits behind the
	// same CORS policy as the REST API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ListCalls returns the identifiers of live call sessions.
func (h *Handler) ListCalls(c *gin.Context) {
	calls := h.sessions.ActiveCalls()
	c.JSON(http.StatusOK, gin.H{
		"active_calls": calls,
		"count":        len(calls),
	})
}

// GetCall returns the conversation for a call. Live sessions are read from
// memory; ended calls fall back to the archived transcript.
func (h *Handler) GetCall(c *gin.Context) {
	callSid := c.Param("call_sid")

	if sess := h.sessions.Get(callSid); sess != nil {
		c.JSON(http.StatusOK, gin.H{
			"call_sid":   callSid,
			"live":       true,
			"created_at": sess.CreatedAt.Format(time.RFC3339),
			"turns":      sess.History(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	archived, err := h.archiver.Fetch(ctx, callSid)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if len(archived) == 0 {
		errors.NotFound(c, "call not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call_sid": callSid,
		"live":     false,
		"turns":    archived,
	})
}

// DeleteCall ends a live session, if any, and removes the archived
// transcript.
func (h *Handler) DeleteCall(c *gin.Context) {
	callSid := c.Param("call_sid")

	live := h.sessions.Get(callSid) != nil
	if live {
		h.sessions.End(callSid)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deleted, err := h.archiver.Delete(ctx, callSid)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if !live && deleted == 0 {
		errors.NotFound(c, "call not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call_sid":      callSid,
		"session_ended": live,
		"turns_deleted": deleted,
	})
}

// LiveTranscript streams turns of a live call to an operator over a
// websocket. The stream closes when the call ends or the client goes away.
func (h *Handler) LiveTranscript(c *gin.Context) {
	callSid := c.Param("call_sid")

	turns, cancel := h.sessions.Subscribe(callSid)
	if turns == nil {
		errors.NotFound(c, "call not found")
		return
	}
	defer cancel()

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.String("call_sid", callSid),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	// Reader goroutine: we never expect client messages, but reading is the
	// only way to observe the close frame.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send the turns that happened before the operator connected. The
	// snapshot is taken after subscribing, so a turn landing in between
	// shows up in both; the snapshot IDs filter it out of the stream.
	snapshot := make(map[string]bool)
	if sess := h.sessions.Get(callSid); sess != nil {
		for _, turn := range sess.History() {
			snapshot[turn.ID] = true
			if err := conn.WriteJSON(turn); err != nil {
				return
			}
		}
	}

	for {
		select {
		case turn, ok := <-turns:
			if !ok {
				// Call ended.
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"),
					time.Now().Add(time.Second))
				return
			}
			if snapshot != nil {
				if snapshot[turn.ID] {
					continue
				}
				// Turns arrive in order; the first unseen one means the
				// snapshot overlap is behind us.
				snapshot = nil
			}
			if err := conn.WriteJSON(turn); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}
