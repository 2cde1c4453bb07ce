// Package provision drives one account through mailbox creation,
// registration, email verification, activation, login and API key
// retrieval.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/nhle/shodjinn/internal/extract"
	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/source"
	mailsync "github.com/nhle/shodjinn/internal/sync"
)

// Mailbox is the disposable-mailbox provider.
type Mailbox interface {
	CreateMailbox(ctx context.Context) (model.MailboxHandle, error)
	PollOnce(ctx context.Context, cursor model.Cursor) (source.PollResult, error)
	FetchMessage(ctx context.Context, id string) (model.Message, error)
}

// Service is the target service the account is created on.
type Service interface {
	RegistrationToken(ctx context.Context) (string, bool, error)
	Register(ctx context.Context, address, token string) (int, error)
	Activate(ctx context.Context, link string) (int, error)
	LoginToken(ctx context.Context) (string, bool, error)
	Login(ctx context.Context, address, token string) (int, error)
	AccountPage(ctx context.Context) (string, error)
}

// Indicator shows progress while the run waits for the activation email.
// Stop must not return before the indicator's output is cleared.
type Indicator interface {
	Start(message string)
	Stop()
}

// Reporter narrates the run to the operator.
type Reporter interface {
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Credential(key string)
}

// Config holds the run parameters.
type Config struct {
	// NotifySender is the address activation emails come from.
	NotifySender string

	// PollInterval is the delay between mailbox checks.
	PollInterval time.Duration

	// StartCursor seeds the mailbox cursor.
	StartCursor model.Cursor
}

// Result describes how far a run got. Run always returns a non-nil
// Result.
type Result struct {
	RunID string
	State State

	Address    string
	Credential string

	// LoginErr is set when login was not accepted. The run still ends
	// without error, in StateActivated.
	LoginErr error

	// CredentialErr is set when the account page had no credential. The
	// run still ends in StateDone.
	CredentialErr error

	// Polls is the number of mailbox checks issued.
	Polls int

	// Cursor is the mailbox cursor after the last successful check.
	Cursor model.Cursor
}

// Orchestrator runs the provisioning state machine. It is single-use per
// account and not safe for concurrent use.
type Orchestrator struct {
	mailbox   Mailbox
	service   Service
	cfg       Config
	indicator Indicator
	reporter  Reporter
	logger    *slog.Logger
	runID     string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIndicator sets the progress indicator shown while waiting for email.
func WithIndicator(ind Indicator) Option {
	return func(o *Orchestrator) {
		o.indicator = ind
	}
}

// WithReporter sets where progress is narrated.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		o.runID = id
	}
}

// New creates an Orchestrator. Without options it reports nothing and
// shows no indicator.
func New(mb Mailbox, svc Service, cfg Config, opts ...Option) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = mailsync.DefaultInterval
	}

	o := &Orchestrator{
		mailbox:   mb,
		service:   svc,
		cfg:       cfg,
		indicator: nopIndicator{},
		reporter:  nopReporter{},
		logger:    slog.New(slog.DiscardHandler),
		runID:     uuid.NewString(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.logger = o.logger.With("run_id", o.runID)
	return o
}

// Run drives the state machine to completion. It returns a *Failure when
// the run ends in StateFailed, including operator cancellation through
// ctx, which carries ErrInterrupted. Login and credential problems are
// reported on the Result and do not produce an error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: o.runID, State: StateStart, Cursor: o.cfg.StartCursor}

	handle, err := o.mailbox.CreateMailbox(ctx)
	if err != nil {
		return o.fail(ctx, res, ReasonMailbox, err)
	}
	res.Address = handle.Address
	o.transition(res, StateMailboxCreated)
	o.reporter.Info("Using the email address: " + handle.Address)

	if reason, err := o.register(ctx, handle.Address); err != nil {
		return o.fail(ctx, res, reason, err)
	}
	o.transition(res, StateRegistered)
	o.reporter.Success("Registration done!")

	o.transition(res, StateAwaitingEmail)
	msg, err := o.awaitActivationEmail(ctx, res)
	if err != nil {
		return o.fail(ctx, res, ReasonMailbox, err)
	}

	link, ok := extract.ActivationLink(msg.Body)
	if !ok {
		return o.fail(ctx, res, ReasonLinkMissing, &ExtractionError{What: "activation link"})
	}
	o.logger.Debug("activation link found", "message_id", msg.ID)

	if err := o.activate(ctx, link); err != nil {
		return o.fail(ctx, res, ReasonActivationRejected, err)
	}
	o.transition(res, StateActivated)
	o.reporter.Success("Activation succeeded.")

	if err := o.login(ctx, handle.Address); err != nil {
		if ctx.Err() != nil {
			return o.fail(ctx, res, ReasonInterrupted, err)
		}
		res.LoginErr = err
		o.logger.Warn("login not accepted", "error", err)
		o.reporter.Warn("Login failed!")
		return res, nil
	}
	o.transition(res, StateLoggedIn)

	key, err := o.credential(ctx)
	if err != nil && ctx.Err() != nil {
		return o.fail(ctx, res, ReasonInterrupted, err)
	}
	o.transition(res, StateDone)
	if err != nil {
		res.CredentialErr = err
		o.logger.Warn("credential not found", "error", err)
		o.reporter.Warn("Could not find API key.")
		return res, nil
	}

	res.Credential = key
	o.reporter.Credential(key)
	return res, nil
}

// register fetches the anti-forgery token and submits the registration
// form. No form is submitted without a token.
func (o *Orchestrator) register(ctx context.Context, address string) (Reason, error) {
	token, found, err := o.service.RegistrationToken(ctx)
	if err != nil {
		return ReasonRegistrationRejected, &RejectedError{Step: "registration", Err: err}
	}
	if !found {
		return ReasonTokenMissing, ErrTokenMissing
	}

	status, err := o.service.Register(ctx, address, token)
	if err != nil {
		return ReasonRegistrationRejected, &RejectedError{Step: "registration", Err: err}
	}
	if status != 200 {
		return ReasonRegistrationRejected, &RejectedError{Step: "registration", StatusCode: status}
	}

	return "", nil
}

// awaitActivationEmail polls until a message from the notification sender
// arrives and returns it. The indicator runs only while polling and is
// torn down before anything else is reported.
func (o *Orchestrator) awaitActivationEmail(ctx context.Context, res *Result) (model.Message, error) {
	poller := mailsync.New(o.mailbox, o.cfg.PollInterval, o.cfg.StartCursor, o.logger)
	defer func() {
		res.Polls = poller.Polls()
		res.Cursor = poller.Cursor()
	}()

	for {
		o.indicator.Start("Waiting for email...")
		summaries, err := poller.Next(ctx)
		o.indicator.Stop()
		if err != nil {
			return model.Message{}, err
		}
		o.reporter.Success("Email received!")

		for _, summary := range summaries {
			if err := ctx.Err(); err != nil {
				return model.Message{}, err
			}

			msg, err := o.mailbox.FetchMessage(ctx, summary.ID)
			if err != nil {
				return model.Message{}, err
			}

			if senderMatches(msg.Sender, o.cfg.NotifySender) {
				return msg, nil
			}
			o.logger.Debug("ignoring message", "message_id", msg.ID, "sender", msg.Sender)
		}
	}
}

// activate visits the link once and requires a 2xx answer.
func (o *Orchestrator) activate(ctx context.Context, link string) error {
	status, err := o.service.Activate(ctx, link)
	if err != nil {
		return &RejectedError{Step: "activation", Err: err}
	}
	if status < 200 || status >= 300 {
		return &RejectedError{Step: "activation", StatusCode: status}
	}
	return nil
}

// login submits the login form, with the login page token when the page
// offers one.
func (o *Orchestrator) login(ctx context.Context, address string) error {
	token, found, err := o.service.LoginToken(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		o.logger.Debug("login page unavailable, continuing without token", "error", err)
	} else if !found {
		o.logger.Debug("login page has no token")
	}

	status, err := o.service.Login(ctx, address, token)
	if err != nil {
		return &LoginError{Err: err}
	}
	if status < 200 || status >= 300 {
		return &LoginError{StatusCode: status}
	}
	return nil
}

// credential scrapes the API key from the account page.
func (o *Orchestrator) credential(ctx context.Context) (string, error) {
	body, err := o.service.AccountPage(ctx)
	if err != nil {
		return "", &ExtractionError{What: "credential", Err: err}
	}

	key, ok := extract.Credential(body)
	if !ok {
		return "", &ExtractionError{What: "credential"}
	}
	return key, nil
}

func (o *Orchestrator) transition(res *Result, to State) {
	o.logger.Debug("state transition", "from", res.State, "to", to)
	res.State = to
}

// fail moves the run to StateFailed. A cancelled context takes precedence
// over reason so that cancellation always reads as an interruption.
func (o *Orchestrator) fail(ctx context.Context, res *Result, reason Reason, err error) (*Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		reason = ReasonInterrupted
		err = fmt.Errorf("%w: %w", ErrInterrupted, ctxErr)
	}

	failure := &Failure{From: res.State, Reason: reason, Err: err}
	o.logger.Debug("run failed", "from", res.State, "reason", reason, "error", err)
	if notice := failureNotice(failure); notice != "" {
		o.reporter.Warn(notice)
	}
	res.State = StateFailed
	return res, failure
}

// failureNotice is the operator-facing line for a fatal failure. It is
// empty for interruptions, which the caller announces itself.
func failureNotice(f *Failure) string {
	switch f.Reason {
	case ReasonMailbox:
		return fmt.Sprintf("Mailbox provider error: %v", f.Err)
	case ReasonTokenMissing:
		return "CSRF token not found on registration page."
	case ReasonRegistrationRejected:
		var rejected *RejectedError
		if errors.As(f.Err, &rejected) && rejected.StatusCode != 0 {
			return fmt.Sprintf("Cannot register! server returned %d", rejected.StatusCode)
		}
		return fmt.Sprintf("Cannot register! %v", f.Err)
	case ReasonLinkMissing:
		return "Activation link not found."
	case ReasonActivationRejected:
		return "Activation failed."
	default:
		return ""
	}
}

// senderMatches compares the address part of from with want. from may
// carry a display name.
func senderMatches(from, want string) bool {
	if addr, err := mail.ParseAddress(from); err == nil {
		from = addr.Address
	}
	return strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(want))
}

type nopIndicator struct{}

func (nopIndicator) Start(string) {}
func (nopIndicator) Stop()        {}

type nopReporter struct{}

func (nopReporter) Info(string)       {}
func (nopReporter) Success(string)    {}
func (nopReporter) Warn(string)       {}
func (nopReporter) Credential(string) {}
