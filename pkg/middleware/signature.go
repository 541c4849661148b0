package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/webhook"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// VerifyTransportSignature rejects inbound voice webhooks whose signature
// does not match the transport auth token. publicBaseURL overrides the
// request host when the service sits behind a proxy, since the transport
// signs the public URL. An empty auth token skips verification.
func VerifyTransportSignature(authToken, publicBaseURL string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		requestURL := publicBaseURL
		if requestURL == "" {
			scheme := "https"
			if c.Request.TLS == nil && c.GetHeader("X-Forwarded-Proto") != "https" {
				scheme = "http"
			}
			requestURL = scheme + "://" + c.Request.Host
		}
		requestURL += c.Request.URL.RequestURI()

		sig := c.GetHeader(twilioSignatureHeader)
		if err := webhook.VerifyTwilioSignature(authToken, requestURL, c.Request.PostForm, sig); err != nil {
			logger.Warn("Rejected webhook with bad signature",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Next()
	}
}
