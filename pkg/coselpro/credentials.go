package coselpro

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/coselpro/pkg/cryptox"
)

// Credentials identify a CoSelPro user against one gateway. They are only held
// long enough to obtain a Token and are never persisted.
type Credentials struct {
	host     string
	login    string
	password string
}

// NewCredentials validates host as an absolute http(s) URL and lower-cases
// login. A malformed host fails with ErrURIEntry.
func NewCredentials(host, login, password string) (Credentials, error) {
	normalized, err := normalizeHost(host)
	if err != nil {
		return Credentials{}, &CredentialsError{Kind: ErrURIEntry, Err: err}
	}

	return Credentials{
		host:     normalized,
		login:    strings.ToLower(strings.TrimSpace(login)),
		password: password,
	}, nil
}

func normalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", errors.New("empty uri")
	}

	u, err := url.Parse(host)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, host)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", host)
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}

// Host returns the normalized gateway address.
func (c Credentials) Host() string { return c.host }

// Login returns the lower-cased login.
func (c Credentials) Login() string { return c.login }

// PasswordDigest returns the hashed password sent to the login RPC.
func (c Credentials) PasswordDigest() string {
	return cryptox.PasswordDigest(c.password, c.login)
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{host: %s, login: %s}", c.host, c.login)
}

// GoString keeps %#v from printing the password.
func (c Credentials) GoString() string { return c.String() }

// LogValue keeps slog from printing the password.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.host),
		slog.String("login", c.login),
	)
}
