package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/session"
)

func TestListCalls(t *testing.T) {
	h, sessions := newTestHandler(&scriptedProvider{reply: "ok"}, testConfig())
	router := gin.New()
	router.GET("/api/calls", h.ListCalls)

	sessions.GetOrCreate("CA700")
	sessions.GetOrCreate("CA701")

	req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		ActiveCalls []string `json:"active_calls"`
		Count       int      `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 active calls, got %d", resp.Count)
	}
}

func TestGetCall_LiveSession(t *testing.T) {
	h, sessions := newTestHandler(&scriptedProvider{reply: "ok"}, testConfig())
	router := gin.New()
	router.GET("/api/calls/:call_sid", h.GetCall)

	sessions.GetOrCreate("CA710")
	sessions.AppendTurn("CA710", "hello", "hi there")

	req := httptest.NewRequest(http.MethodGet, "/api/calls/CA710", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		CallSid string `json:"call_sid"`
		Live    bool   `json:"live"`
		Turns   []struct {
			Utterance string `json:"utterance"`
			Reply     string `json:"reply"`
		} `json:"turns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.Live {
		t.Error("expected live session")
	}
	if len(resp.Turns) != 1 || resp.Turns[0].Reply != "hi there" {
		t.Errorf("unexpected turns: %+v", resp.Turns)
	}
}

func TestGetCall_UnknownCall(t *testing.T) {
	h, _ := newTestHandler(&scriptedProvider{reply: "ok"}, testConfig())
	router := gin.New()
	router.GET("/api/calls/:call_sid", h.GetCall)

	req := httptest.NewRequest(http.MethodGet, "/api/calls/CA999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDeleteCall_EndsLiveSession(t *testing.T) {
	h, sessions := newTestHandler(&scriptedProvider{reply: "ok"}, testConfig())
	router := gin.New()
	router.DELETE("/api/calls/:call_sid", h.DeleteCall)

	sessions.GetOrCreate("CA720")

	req := httptest.NewRequest(http.MethodDelete, "/api/calls/CA720", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sessions.Get("CA720") != nil {
		t.Error("expected session to be evicted")
	}
}

func TestLiveTranscript_EachTurnDeliveredOnce(t *testing.T) {
	h, sessions := newTestHandler(&scriptedProvider{reply: "ok"}, testConfig())
	router := gin.New()
	router.GET("/api/calls/:call_sid/live", h.LiveTranscript)

	sessions.GetOrCreate("CA800")
	sessions.AppendTurn("CA800", "first question", "first answer")

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/calls/CA800/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first session.Turn
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("failed to read history turn: %v", err)
	}
	if first.Utterance != "first question" {
		t.Fatalf("unexpected first turn: %+v", first)
	}

	// The first read proves the subscription is active; the next turn must
	// arrive exactly once.
	sessions.AppendTurn("CA800", "second question", "second answer")

	var second session.Turn
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("failed to read live turn: %v", err)
	}
	if second.Utterance != "second question" {
		t.Fatalf("unexpected second turn: %+v", second)
	}
	if second.ID == first.ID {
		t.Error("live turn repeated the history turn")
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var extra session.Turn
	if err := conn.ReadJSON(&extra); err == nil {
		t.Errorf("unexpected duplicate delivery: %+v", extra)
	}
}
