// Package app wires configuration, clients and presentation into a
// single provisioning run and maps its outcome to a process exit code.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/progress"
	"github.com/nhle/shodjinn/internal/provision"
	"github.com/nhle/shodjinn/internal/session"
	"github.com/nhle/shodjinn/internal/source/guerrilla"
	"github.com/nhle/shodjinn/internal/source/shodan"
	"github.com/nhle/shodjinn/internal/ui"
)

// Version is reported by --version and the banner.
var Version = "v1.0"

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// App is one configured provisioning run.
type App struct {
	cfg       *model.Config
	out       io.Writer
	reporter  *ui.Reporter
	indicator provision.Indicator
	logger    *slog.Logger
}

// Option configures an App.
type Option func(*App)

// WithIndicator replaces the spinner shown while waiting for email.
func WithIndicator(ind provision.Indicator) Option {
	return func(a *App) {
		a.indicator = ind
	}
}

// New creates an App writing narration to out. mode must be resolved
// (see ui.ResolveMode).
func New(cfg *model.Config, out io.Writer, mode string, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &App{
		cfg:      cfg,
		out:      out,
		reporter: ui.NewReporter(out, mode),
		logger:   logger,
	}
	if a.reporter.Verbose() {
		a.indicator = progress.New(out)
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Run provisions one account and returns the run result together with
// the process exit code.
func (a *App) Run(ctx context.Context) (*provision.Result, int) {
	if a.reporter.Verbose() && !a.cfg.Output.NoBanner {
		ui.Banner(a.out, Version)
	}

	if a.cfg.PasswordsDiffer() {
		a.logger.Warn("registration and login passwords differ; login will use target.login_password")
	}

	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)

	orch, err := a.orchestrator(runID)
	if err != nil {
		logger.Error("setting up clients", "error", err)
		a.reporter.Warn(err.Error())
		return &provision.Result{RunID: runID, State: provision.StateFailed}, ExitFailed
	}

	res, err := orch.Run(ctx)
	if err != nil {
		if provision.IsInterrupted(err) {
			a.reporter.Interrupted()
		}
		logger.Info("run ended", "state", res.State, "error", err)
	} else {
		logger.Info("run ended", "state", res.State)
	}

	return res, ExitCode(err)
}

func (a *App) orchestrator(runID string) (*provision.Orchestrator, error) {
	sess, err := session.New(a.cfg.HTTP.Timeout,
		session.WithHeader("User-Agent", a.cfg.HTTP.UserAgent),
		session.WithHeader("Accept-Language", a.cfg.HTTP.AcceptLanguage),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	mailbox, err := guerrilla.NewClient(a.cfg.Mailbox.APIURL, a.cfg.HTTP.Timeout,
		guerrilla.WithIdentity(a.cfg.Mailbox.IP, a.cfg.Mailbox.Agent),
		guerrilla.WithUserAgent(a.cfg.HTTP.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mailbox client: %w", err)
	}

	service := shodan.NewClient(sess,
		shodan.Endpoints{
			RegisterURL: a.cfg.Target.RegisterURL,
			LoginURL:    a.cfg.Target.LoginURL,
			AccountURL:  a.cfg.Target.AccountURL,
		},
		shodan.Form{
			TokenField:       a.cfg.Target.TokenField,
			RegisterPassword: a.cfg.Target.RegisterPassword,
			LoginPassword:    a.cfg.Target.LoginPassword,
			UsernamePrefix:   a.cfg.Target.UsernamePrefix,
		},
	)

	opts := []provision.Option{
		provision.WithReporter(a.reporter),
		provision.WithLogger(a.logger),
		provision.WithRunID(runID),
	}
	if a.indicator != nil {
		opts = append(opts, provision.WithIndicator(a.indicator))
	}

	return provision.New(mailbox, service, provision.Config{
		NotifySender: a.cfg.Target.NotifySender,
		PollInterval: a.cfg.Mailbox.PollInterval,
		StartCursor:  model.Cursor(a.cfg.Mailbox.StartSeq),
	}, opts...), nil
}

// ExitCode maps the error returned by a run to a process exit code.
// Non-fatal problems never reach here as errors, so a nil error is
// always success.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case provision.IsInterrupted(err):
		return ExitInterrupted
	default:
		return ExitFailed
	}
}

// NewLogger creates the diagnostic logger writing text records to w.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
