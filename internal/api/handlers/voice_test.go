package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/ai"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/env"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/knowledge"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/logger"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/metrics"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/session"
)

type fakeRetriever struct {
	passages []knowledge.ScoredPassage
	err      error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) ([]knowledge.ScoredPassage, error) {
	return f.passages, f.err
}

type scriptedProvider struct {
	reply string
	err   error
	calls int32
}

func (p *scriptedProvider) GenerateReply(ctx context.Context, req *ai.ReplyRequest) (string, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *scriptedProvider) IsAvailable() bool { return true }
func (p *scriptedProvider) Name() string      { return "scripted" }

func newTestHandler(provider ai.Provider, cfg *env.Config) (*Handler, *session.Store) {
	gin.SetMode(gin.TestMode)
	if logger.Log == nil {
		logger.Log = zap.NewNop()
	}
	log := zap.NewNop()

	sessions := session.NewStore(30*time.Minute, log)
	manager := ai.NewManager([]ai.Provider{provider}, log)
	retriever := &fakeRetriever{passages: []knowledge.ScoredPassage{
		{Content: "Support hours are 9am to 5pm.", Score: 0.9},
	}}
	engine := ai.NewEngine(retriever, sessions, manager, cfg.RetrievalK, 2*time.Second, log)

	h := NewHandler(cfg, nil, nil, engine, manager, sessions, nil, nil)
	return h, sessions
}

func testConfig() *env.Config {
	return &env.Config{
		Greeting:           "Welcome to support.",
		VoiceName:          "alice",
		GatherTimeoutSec:   5,
		MaxTurns:           50,
		MaxCallDurationMin: 10,
		RetrievalK:         3,
	}
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnswer_GreetsAndListens(t *testing.T) {
	h, sessions := newTestHandler(&scriptedProvider{reply: "ok"}, testConfig())
	router := gin.New()
	router.POST("/answer", h.Answer)

	w := postForm(router, "/answer", url.Values{"CallSid": {"CA100"}, "From": {"+15550100"}})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Welcome to support.") {
		t.Errorf("greeting missing from response: %s", body)
	}
	if !strings.Contains(body, `action="/handle-response"`) {
		t.Errorf("gather action missing: %s", body)
	}
	if !strings.Contains(body, `input="speech"`) {
		t.Errorf("speech input missing: %s", body)
	}
	if sessions.Get("CA100") == nil {
		t.Error("expected session to be created on answer")
	}
}

func TestHandleResponse_RepliesAndKeepsListening(t *testing.T) {
	provider := &scriptedProvider{reply: "We are open 9am to 5pm."}
	h, sessions := newTestHandler(provider, testConfig())
	router := gin.New()
	router.POST("/handle-response", h.HandleResponse)

	w := postForm(router, "/handle-response", url.Values{
		"CallSid":      {"CA200"},
		"SpeechResult": {"What are your hours?"},
	})

	body := w.Body.String()
	if !strings.Contains(body, "We are open 9am to 5pm.") {
		t.Errorf("reply missing from response: %s", body)
	}
	if !strings.Contains(body, `action="/handle-response"`) {
		t.Errorf("expected another listen window: %s", body)
	}
	if strings.Contains(body, "<Hangup") {
		t.Errorf("call should not hang up mid-conversation: %s", body)
	}

	sess := sessions.Get("CA200")
	if sess == nil || sess.TurnCount() != 1 {
		t.Fatalf("expected one recorded turn")
	}
}

func TestHandleResponse_EmptyUtteranceReprompts(t *testing.T) {
	provider := &scriptedProvider{reply: "unused"}
	h, _ := newTestHandler(provider, testConfig())
	router := gin.New()
	router.POST("/handle-response", h.HandleResponse)

	w := postForm(router, "/handle-response", url.Values{"CallSid": {"CA300"}})

	body := w.Body.String()
	if !strings.Contains(body, "I didn&#39;t hear anything. Please speak clearly.") &&
		!strings.Contains(body, "I didn't hear anything. Please speak clearly.") {
		t.Errorf("re-prompt missing: %s", body)
	}
	if !strings.Contains(body, `action="/handle-response"`) {
		t.Errorf("expected another listen window: %s", body)
	}
	if atomic.LoadInt32(&provider.calls) != 0 {
		t.Error("empty utterance must not invoke generation")
	}
}

func TestHandleResponse_GenerationFailureSpeaksFallback(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream down")}
	h, sessions := newTestHandler(provider, testConfig())
	router := gin.New()
	router.POST("/handle-response", h.HandleResponse)

	w := postForm(router, "/handle-response", url.Values{
		"CallSid":      {"CA456"},
		"SpeechResult": {"What are your hours?"},
	})

	body := w.Body.String()
	if !strings.Contains(body, "Let me transfer you to a human agent.") {
		t.Errorf("fallback reply missing: %s", body)
	}
	if !strings.Contains(body, `action="/handle-response"`) {
		t.Errorf("fallback turn must keep the call alive: %s", body)
	}

	sess := sessions.Get("CA456")
	if sess == nil {
		t.Fatal("session should exist after failed turn")
	}
	if sess.TurnCount() != 0 {
		t.Errorf("failed turn must not enter history, got %d turns", sess.TurnCount())
	}
}

func TestHandleResponse_TurnCapEndsCall(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTurns = 1
	provider := &scriptedProvider{reply: "ok"}
	h, sessions := newTestHandler(provider, cfg)
	router := gin.New()
	router.POST("/handle-response", h.HandleResponse)

	sessions.GetOrCreate("CA500")
	sessions.AppendTurn("CA500", "first question", "first answer")

	w := postForm(router, "/handle-response", url.Values{
		"CallSid":      {"CA500"},
		"SpeechResult": {"one more question"},
	})

	body := w.Body.String()
	if !strings.Contains(body, "<Hangup") {
		t.Errorf("expected hangup after turn cap: %s", body)
	}
	if atomic.LoadInt32(&provider.calls) != 0 {
		t.Error("capped turn must not invoke generation")
	}
}

func TestCallStatus_TerminalEvictsSession(t *testing.T) {
	h, sessions := newTestHandler(&scriptedProvider{reply: "ok"}, testConfig())
	router := gin.New()
	router.POST("/call-status", h.CallStatus)

	sessions.GetOrCreate("CA600")
	postForm(router, "/call-status", url.Values{
		"CallSid":    {"CA600"},
		"CallStatus": {"completed"},
	})
	if sessions.Get("CA600") != nil {
		t.Error("completed status should evict the session")
	}

	sessions.GetOrCreate("CA601")
	postForm(router, "/call-status", url.Values{
		"CallSid":    {"CA601"},
		"CallStatus": {"in-progress"},
	})
	if sessions.Get("CA601") == nil {
		t.Error("non-terminal status must keep the session")
	}
}

func handleResponseErrorCount(t *testing.T) int64 {
	t.Helper()
	endpoints, ok := metrics.GetMetrics()["endpoints"].(map[string]interface{})
	if !ok {
		t.Fatal("unexpected metrics shape")
	}
	errs, ok := endpoints["errors"].(map[string]int64)
	if !ok {
		t.Fatal("unexpected metrics shape")
	}
	return errs["/handle-response"]
}

func TestHandleResponse_FallbackCountsAsFailedTurn(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream down")}
	h, _ := newTestHandler(provider, testConfig())
	router := gin.New()
	router.POST("/handle-response", h.HandleResponse)

	before := handleResponseErrorCount(t)
	postForm(router, "/handle-response", url.Values{
		"CallSid":      {"CA460"},
		"SpeechResult": {"What are your hours?"},
	})
	if got := handleResponseErrorCount(t); got != before+1 {
		t.Errorf("expected degraded turn to count as failure, errors %d -> %d", before, got)
	}
}

func TestHandleResponse_AnsweredTurnCountsAsSuccess(t *testing.T) {
	provider := &scriptedProvider{reply: "We are open daily."}
	h, _ := newTestHandler(provider, testConfig())
	router := gin.New()
	router.POST("/handle-response", h.HandleResponse)

	before := handleResponseErrorCount(t)
	postForm(router, "/handle-response", url.Values{
		"CallSid":      {"CA461"},
		"SpeechResult": {"What are your hours?"},
	})
	if got := handleResponseErrorCount(t); got != before {
		t.Errorf("answered turn must not count as failure, errors %d -> %d", before, got)
	}
}
