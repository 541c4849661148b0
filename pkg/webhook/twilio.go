package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
)

// VerifyTwilioSignature verifies the X-Twilio-Signature header on an inbound
// webhook. The signature is HMAC-SHA1 over the full request URL followed by
// every POST parameter name and value in sorted key order, base64 encoded.
// If the auth token is empty, verification is skipped (development/testing).
func VerifyTwilioSignature(authToken, requestURL string, formValues url.Values, signature string) error {
	if authToken == "" {
		return nil
	}

	if signature == "" {
		return fmt.Errorf("signature header missing")
	}

	keys := make([]string, 0, len(formValues))
	for k := range formValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := requestURL
	for _, k := range keys {
		// Twilio signs only the first value of repeated parameters.
		payload += k + formValues.Get(k)
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("invalid signature")
	}

	return nil
}
