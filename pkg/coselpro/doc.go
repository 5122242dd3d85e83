/*
Package coselpro provides an authenticated client for the CoSelPro procurement
database, reached through its PostgREST gateway.

# Overview

The gateway authorizes every request with a short-lived bearer token. This
package obtains that token from user credentials, caches it on disk so the user
is not prompted on every invocation, renews it before it runs out, and hands
out request builders that carry it.

# Client vs Session

  - Client: unauthenticated access to the gateway (base URL, schema, HTTP
    client) and the two token RPCs, login and extend_token
  - Session: a Client paired with one active Token; produces authenticated
    request builders

Create a Client and authenticate:

	client := coselpro.NewClient("https://coselpro.example.com")

	creds, err := coselpro.NewCredentials(client.BaseURL, "consult", "consult")
	if err != nil {
		return err
	}

	session, err := client.Authenticate(ctx, creds)

Or resume from the cached token:

	tok, err := coselpro.LoadToken()
	if err == nil && tok.Active() {
		session, err = coselpro.NewSession(client, tok)
	}

# Token lifecycle

A Token is active while its expiry lies beyond now plus a safety margin
(DefaultSafetyMargin, five minutes). Sessions are only built from tokens that
have not expired yet, and Scoped checks again before every builder it hands
out, since a Session may outlive its token in a long running process.

Renewal calls extend_token authenticated by the current token and returns a new
Session. The old Session is left untouched and stays usable until its own
token expires:

	renewed, err := session.Renew(ctx)

Tokens received from the gateway are written to the token cache (by default
coselpro_token.json in the user's home directory). A failed write does not
fail the login or renewal; it is reported through Client.OnCacheError or,
when that is nil, logged as a warning.

# Queries

	var rows []Supplier
	b, err := session.Scoped("supplier")
	if err != nil {
		return err
	}
	err = b.Select("id,name").ILike("name", "%acme%").Limit(20).Decode(ctx, &rows)

# Error Handling

All failures are typed and match with errors.Is:

  - ErrURIEntry, ErrLoginEntry, ErrPasswordEntry (*CredentialsError)
  - ErrTokenSaving, ErrTokenLoading, ErrTokenParsing (*TokenError)
  - ErrNewToken, ErrRenewToken, ErrExpiredToken (*SessionError)

HTTP status failures additionally carry an *APIError with the gateway's error
body, reachable with errors.As.

# Thread Safety

Sessions and Tokens are immutable values and safe for concurrent use. The
on-disk cache is not locked: concurrent writers from separate processes race,
and the last write wins.
*/
package coselpro
