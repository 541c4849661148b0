package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/ai"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/metrics"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/twiml"
)

const (
	respondAction = "/handle-response"

	noSpeechPrompt = "I didn't hear anything. Please speak clearly."
	turnErrorReply = "I'm sorry, I couldn't process your request. Please try again."
	goodbyeMessage = "Thank you for calling. Goodbye."
)

// Terminal statuses reported by the call-status webhook. Any of these ends
// the in-memory session.
var terminalCallStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// Answer handles the inbound-call webhook: greet the caller and open the
// first listen window.
func (h *Handler) Answer(c *gin.Context) {
	start := time.Now()
	callSid := c.PostForm("CallSid")
	if callSid == "" {
		callSid = c.Query("CallSid")
	}

	if callSid != "" {
		h.sessions.GetOrCreate(callSid)
	}

	h.logger.Info("Inbound call answered",
		zap.String("call_sid", callSid),
		zap.String("from", c.PostForm("From")),
	)

	metrics.RecordRequest("/answer", true, time.Since(start))

	resp := twiml.NewResponse().
		Say(h.cfg.VoiceName, h.cfg.Greeting).
		Pause(1).
		GatherSpeech(respondAction, h.cfg.GatherTimeoutSec)
	h.writeTwiML(c, resp)
}

// HandleResponse handles one dialogue turn: the transport posts the
// transcribed utterance and this returns the next voice document. Any
// failure inside the turn produces a spoken apology, never a dropped call.
func (h *Handler) HandleResponse(c *gin.Context) {
	start := time.Now()
	callSid := c.PostForm("CallSid")
	utterance := c.PostForm("SpeechResult")

	// Last line of defense: a panic anywhere below must still return a
	// speakable document to the transport.
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in dialogue turn",
				zap.String("call_sid", callSid),
				zap.Any("panic", r),
			)
			metrics.RecordRequest(respondAction, false, time.Since(start))
			resp := twiml.NewResponse().
				Say(h.cfg.VoiceName, turnErrorReply).
				GatherSpeech(respondAction, h.cfg.GatherTimeoutSec)
			h.writeTwiML(c, resp)
		}
	}()

	if utterance == "" {
		h.logger.Info("Empty utterance, re-prompting", zap.String("call_sid", callSid))
		metrics.RecordRequest(respondAction, true, time.Since(start))
		resp := twiml.NewResponse().
			Say(h.cfg.VoiceName, noSpeechPrompt).
			GatherSpeech(respondAction, h.cfg.GatherTimeoutSec)
		h.writeTwiML(c, resp)
		return
	}

	sess := h.sessions.GetOrCreate(callSid)
	if sess.TurnCount() >= h.cfg.MaxTurns || time.Since(sess.CreatedAt) >= h.cfg.MaxCallDuration() {
		h.logger.Info("Call reached conversation limit",
			zap.String("call_sid", callSid),
			zap.Int("turns", sess.TurnCount()),
		)
		metrics.RecordRequest(respondAction, true, time.Since(start))
		resp := twiml.NewResponse().
			Say(h.cfg.VoiceName, goodbyeMessage).
			Hangup()
		h.writeTwiML(c, resp)
		return
	}

	before := sess.TurnCount()
	reply := h.engine.Respond(c.Request.Context(), callSid, utterance)
	h.archiveNewTurns(callSid, before)

	// A degraded turn speaks the fallback but counts as a failure.
	metrics.RecordRequest(respondAction, reply != ai.FallbackReply, time.Since(start))

	resp := twiml.NewResponse().
		Say(h.cfg.VoiceName, reply).
		Pause(2).
		GatherSpeech(respondAction, h.cfg.GatherTimeoutSec)
	h.writeTwiML(c, resp)
}

// CallStatus handles the transport's call lifecycle webhook. Terminal
// statuses evict the session immediately instead of waiting for the reaper.
func (h *Handler) CallStatus(c *gin.Context) {
	start := time.Now()
	callSid := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")

	h.logger.Info("Call status update",
		zap.String("call_sid", callSid),
		zap.String("status", status),
	)

	if callSid != "" && terminalCallStatuses[status] {
		h.sessions.End(callSid)
	}

	metrics.RecordRequest("/call-status", true, time.Since(start))
	c.JSON(http.StatusOK, gin.H{"message": "status processed"})
}

// archiveNewTurns persists any turns appended during this request. Failed
// turns never reach history, so only answered exchanges are archived.
func (h *Handler) archiveNewTurns(callSid string, before int) {
	sess := h.sessions.Get(callSid)
	if sess == nil {
		return
	}
	history := sess.History()
	for i := before; i < len(history); i++ {
		h.archiver.Archive(callSid, history[i])
	}
}

func (h *Handler) writeTwiML(c *gin.Context, resp *twiml.Response) {
	body, err := resp.Render()
	if err != nil {
		// Marshaling these fixed structs cannot realistically fail, but the
		// transport must always receive valid XML.
		h.logger.Error("Failed to render voice document", zap.Error(err))
		body = `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup></Hangup></Response>`
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(body))
}
