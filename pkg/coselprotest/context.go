package coselprotest

import (
	"context"

	"github.com/aussiebroadwan/coselpro/pkg/jwtx"
)

type claimsKey struct{}

func withClaims(ctx context.Context, c *jwtx.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func claimsFrom(ctx context.Context) *jwtx.Claims {
	c, _ := ctx.Value(claimsKey{}).(*jwtx.Claims)
	return c
}
