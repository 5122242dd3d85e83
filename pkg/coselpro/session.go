package coselpro

import (
	"context"
	"errors"
	"time"
)

// Session pairs a Client with an active Token. A Session never changes after
// construction: Renew returns a new Session and leaves this one usable until
// its own token expires.
type Session struct {
	client *Client
	token  Token
}

// NewSession builds a Session from tok. It fails with ErrExpiredToken, without
// any network call, when tok has already expired.
func NewSession(client *Client, tok Token) (*Session, error) {
	if client == nil {
		return nil, errors.New("coselpro: nil client")
	}
	if !tok.ActiveWithin(0) {
		return nil, &SessionError{Kind: ErrExpiredToken}
	}
	return &Session{client: client, token: tok}, nil
}

// Authenticate logs in with creds and returns a Session holding the issued
// token. Issuance failures are reported as ErrNewToken.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	tok, err := c.IssueToken(ctx, creds)
	if err != nil {
		return nil, &SessionError{Kind: ErrNewToken, Err: err}
	}
	return NewSession(c, tok)
}

// Connect creates a Client for the credentials' host and authenticates.
// configure, when given, adjusts the client before the login call.
func Connect(ctx context.Context, creds Credentials, configure ...func(*Client)) (*Session, error) {
	client := NewClient(creds.Host())
	for _, fn := range configure {
		fn(client)
	}
	return client.Authenticate(ctx, creds)
}

// Renew extends the session's token and returns a new Session on the same
// client. s itself is not modified. Failures are reported as ErrRenewToken.
func (s *Session) Renew(ctx context.Context) (*Session, error) {
	tok, err := s.client.RenewToken(ctx, s.token)
	if err != nil {
		return nil, &SessionError{Kind: ErrRenewToken, Err: err}
	}

	renewed, err := NewSession(s.client, tok)
	if err != nil {
		return nil, &SessionError{Kind: ErrRenewToken, Err: err}
	}
	return renewed, nil
}

// UserName returns the user the token was issued to.
func (s *Session) UserName() string { return s.token.UserName() }

// Token returns the session's token.
func (s *Session) Token() Token { return s.token }

// Client returns the client the session sends requests through.
func (s *Session) Client() *Client { return s.client }

// NeedsRenewal reports whether the token falls within margin of its expiry.
func (s *Session) NeedsRenewal(margin time.Duration) bool {
	return !s.token.ActiveWithin(margin)
}

// Scoped returns a builder for table, authenticated with the session's token.
// The token is checked again here because a long-lived Session can outlast it.
func (s *Session) Scoped(table string) (*Builder, error) {
	if !s.token.ActiveWithin(0) {
		return nil, &SessionError{Kind: ErrExpiredToken}
	}
	return newBuilder(s.client, s.token.Bearer(), "/"+table), nil
}

// RPC returns a builder calling function with params as its JSON body,
// authenticated with the session's token.
func (s *Session) RPC(function string, params any) (*Builder, error) {
	if !s.token.ActiveWithin(0) {
		return nil, &SessionError{Kind: ErrExpiredToken}
	}
	return newBuilder(s.client, s.token.Bearer(), "/rpc/"+function).rpc(params), nil
}
