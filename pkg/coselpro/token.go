package coselpro

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/cryptox"
)

// DefaultSafetyMargin is how long before expiry a token stops counting as
// active, so callers renew ahead of the deadline rather than at it.
const DefaultSafetyMargin = 5 * time.Minute

// Token is a bearer token issued by the gateway. It is an immutable value:
// renewal produces a new Token.
type Token struct {
	value    string
	expire   time.Time
	userName string
}

// NewToken builds a Token from its parts. expire is stored in UTC.
func NewToken(value string, expire time.Time, userName string) Token {
	return Token{value: value, expire: expire.UTC(), userName: userName}
}

// Bearer returns the raw token string to send as bearer credential.
func (t Token) Bearer() string { return t.value }

// Expire returns the expiry instant (UTC).
func (t Token) Expire() time.Time { return t.expire }

// UserName returns the display name the gateway associated with the token.
func (t Token) UserName() string { return t.userName }

// IsZero reports whether t holds no token.
func (t Token) IsZero() bool { return t.value == "" }

// Active reports whether t is still valid DefaultSafetyMargin from now.
func (t Token) Active() bool { return t.ActiveWithin(DefaultSafetyMargin) }

// ActiveWithin reports whether expire > now + margin. A zero margin checks
// strict expiry.
func (t Token) ActiveWithin(margin time.Duration) bool {
	return t.expire.After(time.Now().Add(margin))
}

// Remaining returns the time left before expiry, negative once expired.
func (t Token) Remaining() time.Duration { return time.Until(t.expire) }

// Equal reports whether two tokens carry the same value, expiry and user.
func (t Token) Equal(o Token) bool {
	return t.value == o.value && t.userName == o.userName && t.expire.Equal(o.expire)
}

// String describes the token without revealing it.
func (t Token) String() string {
	return fmt.Sprintf("Token{user_name: %s, expire: %s, fingerprint: %s}",
		t.userName, t.expire.Format(time.RFC3339), cryptox.FingerprintToken(t.value))
}

// LogValue keeps slog from printing the bearer string.
func (t Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_name", t.userName),
		slog.Time("expire", t.expire),
		slog.String("fingerprint", cryptox.FingerprintToken(t.value)),
	)
}

// ============================================================================
// JSON
// ============================================================================

type tokenJSON struct {
	Token    string    `json:"token"`
	Expire   time.Time `json:"expire"`
	UserName string    `json:"user_name"`
}

// MarshalJSON encodes {"token","expire","user_name"} with expire in RFC 3339 UTC.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenJSON{Token: t.value, Expire: t.expire.UTC(), UserName: t.userName})
}

// UnmarshalJSON decodes the gateway/cache shape. All three fields are
// required; expire may be an ISO-8601 string or epoch seconds.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw struct {
		Token    *string         `json:"token"`
		Expire   json.RawMessage `json:"expire"`
		UserName *string         `json:"user_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Token == nil:
		return errors.New("missing field `token`")
	case *raw.Token == "":
		return errors.New("empty field `token`")
	case len(raw.Expire) == 0 || string(raw.Expire) == "null":
		return errors.New("missing field `expire`")
	case raw.UserName == nil:
		return errors.New("missing field `user_name`")
	}

	expire, err := parseExpire(raw.Expire)
	if err != nil {
		return fmt.Errorf("invalid field `expire`: %w", err)
	}

	*t = NewToken(*raw.Token, expire, *raw.UserName)
	return nil
}

// expireLayouts are tried in order for string timestamps. The gateway renders
// PostgreSQL timestamps, which may use a space separator and short offsets.
var expireLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseExpire(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)

	// epoch seconds as a JSON number
	if len(raw) > 0 && raw[0] != '"' {
		return parseEpoch(string(raw))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)

	for _, layout := range expireLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			// layouts without a zone parse as UTC
			return ts.UTC(), nil
		}
	}

	// epoch seconds as a string
	if ts, err := parseEpoch(s); err == nil {
		return ts, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseEpoch(s string) (time.Time, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC(), nil
}
