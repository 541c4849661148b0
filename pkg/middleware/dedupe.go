package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	dedupeTTL = 60 * time.Second

	// Set by the transport on redelivery of the same webhook.
	idempotencyTokenHeader = "I-Twilio-Idempotency-Token"
)

// WebhookDedupe suppresses duplicate webhook deliveries. The transport is
// expected to deliver each turn once, but retries happen; replaying a turn
// would corrupt the call's dialogue history. The first delivery's response
// is cached briefly in Redis and replayed for redeliveries of the same
// token. Requests without a token pass through untouched: a caller saying
// the same words twice is two real turns, and the per-session lock already
// keeps a true duplicate from interleaving history. A nil Redis client
// disables deduplication.
func WebhookDedupe(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		token := c.GetHeader(idempotencyTokenHeader)
		if token == "" {
			c.Next()
			return
		}

		key := "webhook:" + hashTurn(c.FullPath(), token)
		ctx := c.Request.Context()

		cached, err := redisClient.Get(ctx, key).Result()
		if err == nil && cached != "" {
			c.Header("X-Duplicate-Delivery", "true")
			c.Data(200, "text/xml", []byte(cached))
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = capture
		c.Next()

		if capture.Status() == 200 && capture.body.Len() > 0 {
			redisClient.Set(ctx, key, capture.body.String(), dedupeTTL)
		}
	}
}

type bodyCapture struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func hashTurn(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
