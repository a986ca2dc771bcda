package tap

import "regexp"

// secretPatterns matches key=value / key:"value" pairs carrying a token,
// password, or key-shaped secret, generalized from the teacher's
// pkg/masking builtin regex set (api_key, password, token, private_key,
// secret_key) down to the handful relevant to webhook/admin payloads: Twitch
// EventSub and HMAC signing secrets never appear as certificates or SSH
// keys, so those builtin patterns have no home here.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{12,})["']?`),
	regexp.MustCompile(`(?i)(?:secret|hmac[_-]?secret|client[_-]?secret)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{12,})["']?`),
	regexp.MustCompile(`(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{12,})["']?`),
	regexp.MustCompile(`(?i)(?:password|pwd)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`),
}

const secretReplacement = "[MASKED]"

// RedactSecrets scans s for key=value-shaped secrets and tokens and replaces
// the value with a fixed marker. Defensive by construction: a pattern miss
// leaves the input untouched rather than erroring.
func RedactSecrets(s string) string {
	out := s
	for _, p := range secretPatterns {
		out = p.ReplaceAllStringFunc(out, func(match string) string {
			loc := p.FindStringSubmatchIndex(match)
			if loc == nil || len(loc) < 4 || loc[2] < 0 {
				return match
			}
			return match[:loc[2]] + secretReplacement + match[loc[3]:]
		})
	}
	return out
}

// MaskUserID partially masks a user identifier, keeping only a short prefix
// visible — enough for an operator to correlate repeated events without the
// full id leaving the tap.
func MaskUserID(id string) string {
	if len(id) <= 4 {
		return "***"
	}
	return id[:4] + "***"
}

// userIDPatterns matches the shapes a Twitch user id shows up in across tap
// payloads: a flat "user_id" field (raw EventSub notifications, counter
// patches) and the nested "user":{"id":...} object QueueEntry serializes to.
var userIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"user_id"\s*:\s*"([^"]*)"`),
	regexp.MustCompile(`"user"\s*:\s*\{\s*"id"\s*:\s*"([^"]*)"`),
}

// MaskUserIDsInJSON scans JSON-shaped text for user id fields and replaces
// each value with MaskUserID's masked form.
func MaskUserIDsInJSON(s string) string {
	out := s
	for _, p := range userIDPatterns {
		out = p.ReplaceAllStringFunc(out, func(match string) string {
			loc := p.FindStringSubmatchIndex(match)
			if loc == nil || len(loc) < 4 || loc[2] < 0 {
				return match
			}
			return match[:loc[2]] + MaskUserID(match[loc[2]:loc[3]]) + match[loc[3]:]
		})
	}
	return out
}

const maxPayloadBytes = 64 * 1024

// Truncate bounds s at maxPayloadBytes, returning the truncated string and
// whether truncation occurred, so a huge payload can't grow the tap's
// buffer or a sink's storage without bound.
func Truncate(s string) (string, bool) {
	if len(s) <= maxPayloadBytes {
		return s, false
	}
	return s[:maxPayloadBytes], true
}
