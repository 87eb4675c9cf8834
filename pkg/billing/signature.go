package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

// Standard Webhooks headers, used by Polar.
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookTimestamp = "webhook-timestamp"
	HeaderWebhookSignature = "webhook-signature"
)

// SignHMAC returns the hex HMAC-SHA256 of payload, the scheme Lemon Squeezy uses.
func SignHMAC(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC checks a hex HMAC-SHA256 signature over the raw body.
// Comparison is constant time; any length or byte mismatch is rejected.
func VerifyHMAC(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrWebhookSecretMissing
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	expected := SignHMAC(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// verifyStandardWebhook checks the webhook-* headers against the raw body and
// maps library errors onto the package's authentication sentinels.
func verifyStandardWebhook(wh *standardwebhooks.Webhook, payload []byte, header http.Header) error {
	if wh == nil {
		return ErrWebhookSecretMissing
	}
	if header.Get(HeaderWebhookID) == "" || header.Get(HeaderWebhookTimestamp) == "" ||
		header.Get(HeaderWebhookSignature) == "" {
		return ErrMissingSignature
	}
	if err := wh.Verify(payload, header); err != nil {
		if errors.Is(err, standardwebhooks.ErrRequiredHeaders) {
			return ErrMissingSignature
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// standardWebhookKey decodes a "whsec_" base64 secret and uses any other
// value as raw key bytes.
func standardWebhookKey(secret string) []byte {
	if rest, ok := strings.CutPrefix(secret, "whsec_"); ok {
		if key, err := base64.StdEncoding.DecodeString(rest); err == nil {
			return key
		}
	}
	return []byte(secret)
}
