package coselpro

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/coselpro/pkg/cryptox"
)

// Gateway RPC names.
const (
	rpcLogin       = "login"
	rpcExtendToken = "extend_token"
)

// loginRequest is the body of the login RPC.
type loginRequest struct {
	Username string `json:"username"`
	Pass     string `json:"pass"`
}

// IssueToken exchanges credentials for a token through the login RPC.
//
// The token is written to c.Cache on success. A cache failure does not fail
// IssueToken; see Client.OnCacheError.
func (c *Client) IssueToken(ctx context.Context, creds Credentials) (Token, error) {
	body, err := json.Marshal(loginRequest{
		Username: creds.Login(),
		Pass:     creds.PasswordDigest(),
	})
	if err != nil {
		return Token{}, &TokenError{Kind: ErrTokenParsing, Op: rpcLogin, Err: err}
	}

	tok, err := c.requestToken(ctx, rpcLogin, bytes.NewReader(body), "")
	if err != nil {
		c.logger(ctx).Error("getting token failed", "login", creds.Login(), "error", err)
		return Token{}, err
	}

	c.persist(ctx, rpcLogin, tok)
	return tok, nil
}

// RenewToken obtains a fresh token through the extend_token RPC, authenticated
// by current. The gateway keeps the user and pushes expiry forward; a reply
// that breaks this is logged but still returned, since it is the gateway's
// contract to keep.
//
// The renewed token is written to c.Cache like in IssueToken.
func (c *Client) RenewToken(ctx context.Context, current Token) (Token, error) {
	tok, err := c.requestToken(ctx, rpcExtendToken, http.NoBody, current.Bearer())
	if err != nil {
		c.logger(ctx).Error("renewing token failed", "token", current, "error", err)
		return Token{}, err
	}

	if tok.UserName() != current.UserName() || !tok.Expire().After(current.Expire()) {
		c.logger(ctx).Warn("gateway renewed token without extending it",
			"previous", current,
			"renewed", tok,
		)
	}

	c.persist(ctx, rpcExtendToken, tok)
	return tok, nil
}

// requestToken calls a token-issuing RPC and decodes its reply.
func (c *Client) requestToken(ctx context.Context, fn string, body io.Reader, bearer string) (Token, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/rpc/"+fn, nil, body, bearer)
	if err != nil {
		return Token{}, &TokenError{Kind: ErrTokenParsing, Op: fn, Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return Token{}, &TokenError{Kind: ErrTokenParsing, Op: fn, Err: err}
	}

	var tok Token
	if err := decodeJSON(resp, &tok); err != nil {
		return Token{}, &TokenError{Kind: ErrTokenParsing, Op: fn, Err: err}
	}

	c.logger(ctx).Debug("token received", "op", fn, "token", tok)
	return tok, nil
}

// persist writes tok to the cache. Issuance already succeeded at this point,
// so a failed write is reported on its own channel and never returned.
func (c *Client) persist(ctx context.Context, op string, tok Token) {
	if c.Cache == nil {
		return
	}

	err := c.Cache.Save(tok)
	if err == nil {
		return
	}

	if c.OnCacheError != nil {
		c.OnCacheError(ctx, op, err)
		return
	}

	c.logger(ctx).Warn("token cache write failed",
		"op", op,
		"fingerprint", cryptox.FingerprintToken(tok.Bearer()),
		"error", err,
	)
}

// IsNetworkError reports whether err comes from failing to reach the gateway
// rather than from a gateway reply. Callers use it to decide on retries.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var tokErr *TokenError
	if !errors.As(err, &tokErr) {
		return false
	}
	var netErr interface{ Timeout() bool }
	return errors.As(tokErr.Err, &netErr)
}
