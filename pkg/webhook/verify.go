// Package webhook implements Twitch EventSub webhook signature and
// freshness verification, independent of the HTTP framework so pkg/api can
// call it from an echo handler without either package depending on the
// other's transport details.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"
)

// ErrSignatureMismatch is returned when the recomputed HMAC does not match
// the message-signature header — maps to HTTP 403.
var ErrSignatureMismatch = errors.New("webhook: signature mismatch")

// ErrStale is returned when the message timestamp falls outside the
// freshness window — maps to HTTP 400.
var ErrStale = errors.New("webhook: timestamp outside freshness window")

// FreshnessWindow bounds how far message-timestamp may drift from now in
// either direction before a notification is rejected as stale.
const FreshnessWindow = 10 * time.Minute

// Notification carries the headers and body Verify needs. MessageID,
// Timestamp, and Signature come from the Twitch-Eventsub-Message-* headers;
// Body is the raw, unparsed request body (the signature covers the exact
// bytes Twitch sent, not a re-marshaled form).
type Notification struct {
	MessageID    string
	TimestampRaw string // the literal Twitch-Eventsub-Message-Timestamp header value, used verbatim in the signed bytes
	Timestamp    time.Time
	Signature    string // "sha256=<hex>", as sent in Twitch-Eventsub-Message-Signature
	Body         []byte
}

// Verify recomputes HMAC-SHA256 over message_id||timestamp||raw_body with
// secret and constant-time compares it against n.Signature, then checks
// n.Timestamp against now using FreshnessWindow. Returns ErrSignatureMismatch
// or ErrStale on failure, nil on success. A forged signature is rejected
// before a timestamp is even consulted, since a signature computed by
// someone without the secret can't be trusted to have an honest timestamp
// either.
func Verify(n Notification, secret []byte, now time.Time) error {
	if !validSignature(n, secret) {
		return ErrSignatureMismatch
	}
	if delta := now.Sub(n.Timestamp); delta > FreshnessWindow || delta < -FreshnessWindow {
		return ErrStale
	}
	return nil
}

func validSignature(n Notification, secret []byte) bool {
	const prefix = "sha256="
	got := n.Signature
	if len(got) <= len(prefix) || got[:len(prefix)] != prefix {
		return false
	}
	gotHex := got[len(prefix):]

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(n.MessageID))
	mac.Write([]byte(n.TimestampRaw))
	mac.Write(n.Body)
	want := mac.Sum(nil)
	wantHex := hex.EncodeToString(want)

	return subtle.ConstantTimeCompare([]byte(gotHex), []byte(wantHex)) == 1
}
