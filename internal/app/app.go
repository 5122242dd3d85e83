package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/aussiebroadwan/coselpro/pkg/httpx"
	"github.com/aussiebroadwan/coselpro/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// ErrUsage is returned for an unknown command or bad arguments; usage has
// already been printed.
var ErrUsage = errors.New("usage error")

// Application is the coselpro command line client with its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	client *coselpro.Client
	cache  *coselpro.TokenFile

	// prompt asks for credentials when no usable token is cached
	prompt func(defaultURI, defaultLogin string) (coselpro.Credentials, error)

	stdout io.Writer
	stderr io.Writer
}

// New creates an Application from cfg.
func New(cfg Config) *Application {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "coselpro",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		cache:  &coselpro.TokenFile{Path: cfg.TokenFile},
		stdout: os.Stdout,
		stderr: os.Stderr,
		prompt: func(defaultURI, defaultLogin string) (coselpro.Credentials, error) {
			p := coselpro.NewConsolePrompt()
			p.DefaultURI = defaultURI
			p.DefaultLogin = defaultLogin
			return p.Credentials()
		},
	}

	app.initClient()
	return app
}

// initClient builds the gateway client: request logging on top of the client
// side rate limiter, the token file as cache.
func (app *Application) initClient() {
	transport := &slogx.Transport{
		Base:   httpx.NewRateLimitTransport(nil, app.cfg.RateLimit),
		Logger: app.logger,
	}

	app.client = &coselpro.Client{
		BaseURL: strings.TrimSuffix(app.cfg.URL, "/"),
		Schema:  app.cfg.Schema,
		HTTPClient: &http.Client{
			Timeout:   app.cfg.Timeout,
			Transport: transport,
		},
		Logger: app.logger,
		Cache:  app.cache,
	}
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(app *Application, ctx context.Context, args []string) error
}

var commands = []command{
	{name: "login", usage: "login", summary: "prompt for credentials and cache a new token", run: (*Application).cmdLogin},
	{name: "renew", usage: "renew", summary: "extend the cached token", run: (*Application).cmdRenew},
	{name: "status", usage: "status", summary: "show the cached token", run: (*Application).cmdStatus},
	{name: "logout", usage: "logout", summary: "delete the cached token", run: (*Application).cmdLogout},
	{name: "xcompany", usage: "xcompany <company>", summary: "cross reference a company", run: (*Application).cmdXCompany},
	{name: "query", usage: "query <table> [-select cols] [-eq col=val]... [-limit n]", summary: "read rows from a table", run: (*Application).cmdQuery},
}

// Run executes the command named by args[0].
func (app *Application) Run(ctx context.Context, args []string) error {
	ctx = slogx.WithContext(ctx, app.logger)

	if len(args) == 0 {
		app.usage()
		return ErrUsage
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(app, ctx, args[1:])
		}
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		app.usage()
		return nil
	}

	fmt.Fprintf(app.stderr, "unknown command %q\n", args[0])
	app.usage()
	return ErrUsage
}

func (app *Application) usage() {
	fmt.Fprintf(app.stderr, "coselpro %s - CoSelPro gateway client\n\nUsage:\n", BuildVersion)
	for _, cmd := range commands {
		fmt.Fprintf(app.stderr, "  coselpro %-58s %s\n", cmd.usage, cmd.summary)
	}
}

// flagSet returns a FlagSet that reports errors instead of exiting.
func (app *Application) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.stderr)
	return fs
}
