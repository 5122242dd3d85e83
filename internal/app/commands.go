package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/aussiebroadwan/coselpro/pkg/cryptox"
	"github.com/aussiebroadwan/coselpro/pkg/jwtx"
)

func (app *Application) cmdLogin(ctx context.Context, args []string) error {
	if err := app.flagSet("login").Parse(args); err != nil {
		return ErrUsage
	}

	s, err := app.login(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Logged in as %s, token expires %s\n",
		s.UserName(), s.Token().Expire().Local().Format(time.DateTime))
	return nil
}

func (app *Application) cmdRenew(ctx context.Context, args []string) error {
	if err := app.flagSet("renew").Parse(args); err != nil {
		return ErrUsage
	}
	if app.client.BaseURL == "" {
		return errNoURL
	}

	tok, err := app.cache.Load()
	if err != nil {
		return fmt.Errorf("no cached token, run login: %w", err)
	}

	current, err := coselpro.NewSession(app.client, tok)
	if err != nil {
		return fmt.Errorf("cached token cannot be renewed, run login: %w", err)
	}

	s, err := app.renew(ctx, current)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Token renewed for %s, expires %s\n",
		s.UserName(), s.Token().Expire().Local().Format(time.DateTime))
	return nil
}

func (app *Application) cmdStatus(_ context.Context, args []string) error {
	if err := app.flagSet("status").Parse(args); err != nil {
		return ErrUsage
	}

	tok, err := app.cache.Load()
	if err != nil {
		return fmt.Errorf("no cached token: %w", err)
	}

	state := "expired"
	switch {
	case tok.ActiveWithin(app.cfg.SafetyMargin):
		state = "active"
	case tok.ActiveWithin(0):
		state = "expiring, renew it"
	}

	fmt.Fprintf(app.stdout, "%-12s %s\n", "user_name:", tok.UserName())
	fmt.Fprintf(app.stdout, "%-12s %s\n", "expire:", tok.Expire().Local().Format(time.DateTime))
	fmt.Fprintf(app.stdout, "%-12s %s\n", "remaining:", tok.Remaining().Truncate(time.Second))
	fmt.Fprintf(app.stdout, "%-12s %s\n", "state:", state)
	fmt.Fprintf(app.stdout, "%-12s %s\n", "fingerprint:", cryptox.FingerprintToken(tok.Bearer()))

	// The gateway signs with a key we do not hold; claims are shown as-is.
	claims, err := jwtx.Peek(tok.Bearer())
	if err != nil {
		app.logger.Debug("token is not a readable JWT", "error", err)
		return nil
	}

	fields := [][2]string{
		{"role", claims.Role},
		{"login", claims.Login},
		{"sub", claims.Subject},
		{"jti", claims.ID},
	}
	if claims.IssuedAt != nil {
		fields = append(fields, [2]string{"iat", claims.IssuedAt.Local().Format(time.DateTime)})
	}
	if claims.ExpiresAt != nil {
		fields = append(fields, [2]string{"exp", claims.ExpiresAt.Local().Format(time.DateTime)})
	}
	for _, f := range fields {
		if f[1] != "" {
			fmt.Fprintf(app.stdout, "%-12s %s\n", "claim."+f[0]+":", f[1])
		}
	}
	return nil
}

func (app *Application) cmdLogout(_ context.Context, args []string) error {
	if err := app.flagSet("logout").Parse(args); err != nil {
		return ErrUsage
	}

	if err := app.cache.Remove(); err != nil {
		return fmt.Errorf("failed to remove cached token: %w", err)
	}

	fmt.Fprintln(app.stdout, "Cached token removed")
	return nil
}

func (app *Application) cmdXCompany(ctx context.Context, args []string) error {
	fs := app.flagSet("xcompany")
	var divisions, types intList
	fs.Var(&divisions, "division", "restrict to a division id (repeatable)")
	fs.Var(&types, "type", "restrict to an xcompany type id (repeatable)")

	company, rest, ok := splitPositional(args)
	if !ok {
		fmt.Fprintln(app.stderr, "usage: coselpro xcompany <company> [-division id]... [-type id]...")
		return ErrUsage
	}
	if err := fs.Parse(rest); err != nil {
		return ErrUsage
	}

	s, err := app.session(ctx)
	if err != nil {
		return err
	}

	x, err := s.XCompany(ctx, coselpro.XCompanyRequest{
		Company:         company,
		DivisionIDs:     divisions,
		XCompanyTypeIDs: types,
	})
	if err != nil {
		return err
	}
	return app.printJSON(x)
}

func (app *Application) cmdQuery(ctx context.Context, args []string) error {
	fs := app.flagSet("query")
	var (
		columns = fs.String("select", "", "columns to return")
		limit   = fs.Int("limit", -1, "maximum number of rows")
		filters []string
	)
	fs.Func("eq", "filter col=val (repeatable)", func(v string) error {
		if !strings.Contains(v, "=") {
			return errors.New("expected col=val")
		}
		filters = append(filters, v)
		return nil
	})

	table, rest, ok := splitPositional(args)
	if !ok {
		fmt.Fprintln(app.stderr, "usage: coselpro query <table> [-select cols] [-eq col=val]... [-limit n]")
		return ErrUsage
	}
	if err := fs.Parse(rest); err != nil {
		return ErrUsage
	}

	s, err := app.session(ctx)
	if err != nil {
		return err
	}

	b, err := s.Scoped(table)
	if err != nil {
		return err
	}
	if *columns != "" {
		b.Select(*columns)
	}
	for _, f := range filters {
		col, val, _ := strings.Cut(f, "=")
		b.Eq(col, val)
	}
	if *limit >= 0 {
		b.Limit(*limit)
	}

	var rows []json.RawMessage
	if err := b.Decode(ctx, &rows); err != nil {
		return err
	}
	return app.printJSON(rows)
}

func (app *Application) printJSON(v any) error {
	enc := json.NewEncoder(app.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// splitPositional takes the leading positional argument off args.
func splitPositional(args []string) (string, []string, bool) {
	if len(args) == 0 || args[0] == "" || strings.HasPrefix(args[0], "-") {
		return "", nil, false
	}
	return args[0], args[1:], true
}

// intList is a repeatable integer flag.
type intList []int

func (l *intList) String() string {
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*l = append(*l, n)
	return nil
}
