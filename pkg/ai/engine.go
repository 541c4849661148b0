package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/circuitbreaker"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/knowledge"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/metrics"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/session"
)

// FallbackReply is spoken whenever a turn cannot be answered. It must never
// vary: the transport team scripts the human handoff around this exact text.
const FallbackReply = "I apologize, but I'm having trouble. Let me transfer you to a human agent."

// systemInstruction is seeded once per call and constrains every reply.
const systemInstruction = `You are an AI customer support representative. Your responses should be:
1. Brief and clear (2-3 sentences maximum)
2. Professional and friendly
3. Focused on one key point at a time
4. Easy to understand over the phone`

// maxReplySentences is the hard ceiling enforced after generation. The
// prompt asks for it too; the clamp guarantees it.
const maxReplySentences = 3

// Retriever is the query surface of the knowledge index.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]knowledge.ScoredPassage, error)
}

// Engine orchestrates one dialogue turn: retrieval, prompt assembly,
// generation within the call's history, and degradation on failure.
type Engine struct {
	retriever Retriever
	sessions  *session.Store
	manager   *Manager
	breaker   *circuitbreaker.CircuitBreaker
	topK      int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewEngine creates a response engine.
func NewEngine(retriever Retriever, sessions *session.Store, manager *Manager, topK int, timeout time.Duration, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = 3
	}
	return &Engine{
		retriever: retriever,
		sessions:  sessions,
		manager:   manager,
		breaker:   circuitbreaker.New(circuitbreaker.DefaultConfig()),
		topK:      topK,
		timeout:   timeout,
		logger:    logger,
	}
}

// Respond produces the reply for one utterance of a call. It never returns
// an error: every failure degrades to FallbackReply so a bad turn cannot
// abort the call.
func (e *Engine) Respond(ctx context.Context, callSid, utterance string) string {
	sess := e.sessions.GetOrCreate(callSid)

	// One turn at a time per call; duplicate webhook delivery must not
	// interleave history.
	sess.ProcessingMu.Lock()
	defer sess.ProcessingMu.Unlock()

	reply, err := e.respond(ctx, sess, callSid, utterance)
	if err != nil {
		e.logger.Error("Turn failed, degrading to fallback",
			zap.String("call_sid", callSid),
			zap.Error(err),
		)
		return FallbackReply
	}
	return reply
}

func (e *Engine) respond(ctx context.Context, sess *session.Session, callSid, utterance string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	passages, err := e.retriever.Retrieve(ctx, utterance, e.topK)
	metrics.RecordServiceCall("retrieval", err == nil, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	// Zero passages is degraded, not fatal: the prompt proceeds ungrounded.
	contents := make([]string, 0, len(passages))
	for _, p := range passages {
		contents = append(contents, p.Content)
	}
	contextText := strings.Join(contents, "\n")

	if sess.SeedInstruction(systemInstruction) {
		e.logger.Info("Seeded call instruction", zap.String("call_sid", callSid))
	}

	prompt := fmt.Sprintf(`Using this context: %s

Provide a brief, clear answer to: %s

Keep your response to 2-3 sentences maximum.`, contextText, utterance)

	req := &ReplyRequest{
		Instruction: sess.Instruction(),
		History:     historyMessages(sess.History()),
		Prompt:      prompt,
	}

	var reply string
	genStart := time.Now()
	genErr := e.breaker.Execute(ctx, func() error {
		var err error
		reply, err = e.manager.GenerateReply(ctx, req)
		return err
	})
	metrics.RecordServiceCall("generation", genErr == nil, time.Since(genStart))
	if genErr != nil {
		return "", fmt.Errorf("generation failed: %w", genErr)
	}

	reply = LimitSentences(reply, maxReplySentences)
	e.sessions.AppendTurn(callSid, utterance, reply)
	return reply, nil
}

// historyMessages flattens completed turns into alternating user/assistant
// messages, oldest first.
func historyMessages(turns []session.Turn) []Message {
	msgs := make([]Message, 0, len(turns)*2)
	for _, turn := range turns {
		msgs = append(msgs,
			Message{Role: "user", Content: turn.Utterance},
			Message{Role: "assistant", Content: turn.Reply},
		)
	}
	return msgs
}

// LimitSentences truncates text after max sentences. Sentence breaks are
// terminator runs (., !, ?) followed by whitespace or end of text.
func LimitSentences(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || text == "" {
		return text
	}

	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// Consume the terminator run (e.g. "?!" or "...").
			for i+1 < len(text) && (text[i+1] == '.' || text[i+1] == '!' || text[i+1] == '?') {
				i++
			}
			if i+1 >= len(text) {
				return text
			}
			if text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t' {
				count++
				if count >= max {
					return text[:i+1]
				}
			}
		}
	}
	return text
}
