package app

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/cenkalti/backoff/v4"
)

// errNoURL is returned when a cached token exists but there is no gateway to
// send it to.
var errNoURL = errors.New("no gateway url configured: set COSELPRO_URL or run login")

// session returns a usable session: the cached token when it is active at the
// safety margin, a renewal of it when it is only active at margin zero, and a
// fresh login otherwise.
func (app *Application) session(ctx context.Context) (*coselpro.Session, error) {
	tok, err := app.cache.Load()
	switch {
	case err != nil:
		app.logger.Debug("no cached token", "error", err)
	case app.client.BaseURL == "":
		app.logger.Debug("cached token ignored", "error", errNoURL)
	case tok.ActiveWithin(app.cfg.SafetyMargin):
		return coselpro.NewSession(app.client, tok)
	case tok.ActiveWithin(0):
		if s, err := coselpro.NewSession(app.client, tok); err == nil {
			renewed, err := app.renew(ctx, s)
			if err == nil {
				return renewed, nil
			}
			app.logger.Warn("token renewal failed, logging in again", "error", err)
		}
	default:
		app.logger.Debug("cached token expired", "token", tok)
	}

	return app.login(ctx)
}

// login prompts for credentials and authenticates against the host entered.
func (app *Application) login(ctx context.Context) (*coselpro.Session, error) {
	creds, err := app.prompt(app.cfg.URL, app.cfg.Login)
	if err != nil {
		return nil, err
	}

	client := app.client.WithBaseURL(creds.Host())

	var s *coselpro.Session
	err = app.retry(ctx, "login", func() error {
		var err error
		s, err = client.Authenticate(ctx, creds)
		return err
	})
	return s, err
}

func (app *Application) renew(ctx context.Context, current *coselpro.Session) (*coselpro.Session, error) {
	var s *coselpro.Session
	err := app.retry(ctx, "renew", func() error {
		var err error
		s, err = current.Renew(ctx)
		return err
	})
	return s, err
}

// retry runs op again on network failures, with exponential backoff, at most
// cfg.RetryMax times. Any other error is returned at once.
func (app *Application) retry(ctx context.Context, name string, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(app.cfg.RetryMax, 0))),
		ctx,
	)

	return backoff.RetryNotify(
		func() error {
			err := op()
			if err != nil && !coselpro.IsNetworkError(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		policy,
		func(err error, wait time.Duration) {
			app.logger.Warn("gateway unreachable, retrying",
				"op", name,
				"retry_in", wait,
				"error", err,
			)
		},
	)
}
