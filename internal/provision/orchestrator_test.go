package provision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/source"
)

const (
	testSender = "no-reply@mg.shodan.io"
	testKey    = "deadbeefdeadbeefdeadbeefdeadbeef"
)

func activationMail(id string) model.Message {
	return model.Message{
		ID:     id,
		Sender: testSender,
		Body:   `<p>Welcome!</p><a href="https://x/activate/TOKEN123">Activate</a>`,
	}
}

type harness struct {
	log     *eventLog
	mailbox *fakeMailbox
	service *fakeService
}

func newHarness() *harness {
	log := &eventLog{}
	return &harness{
		log:     log,
		mailbox: &fakeMailbox{log: log, address: "abc@guerrillamail.com"},
		service: newFakeService(log),
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return New(h.mailbox, h.service,
		Config{NotifySender: testSender, PollInterval: time.Millisecond, StartCursor: 1},
		WithIndicator(fakeIndicator{log: h.log}),
		WithReporter(fakeReporter{log: h.log}),
		WithRunID("test-run"),
	)
}

func TestRunHappyPath(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{nil, {activationMail("2")}}

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "test-run", res.RunID)
	assert.Equal(t, "abc@guerrillamail.com", res.Address)
	assert.Equal(t, testKey, res.Credential)
	assert.NoError(t, res.LoginErr)
	assert.NoError(t, res.CredentialErr)
	assert.Equal(t, 2, res.Polls)
	assert.Equal(t, model.Cursor(2), res.Cursor)

	assert.Equal(t, "abc@guerrillamail.com", h.service.registeredAddress)
	assert.Equal(t, "reg-token", h.service.registeredToken)
	assert.Equal(t, []string{"https://x/activate/TOKEN123"}, h.service.activatedLinks)
	assert.Equal(t, "login-token", h.service.loginSubmitToken)
	assert.Equal(t, 1, h.log.count("credential:"+testKey))
}

func TestRunIndicatorStopsBeforeEmailNotice(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{nil, {activationMail("2")}}

	_, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	stop := h.log.index("indicator.stop")
	notice := h.log.index("success:Email received!")
	require.NotEqual(t, -1, stop)
	require.NotEqual(t, -1, notice)
	assert.Less(t, stop, notice)
	assert.Equal(t, 1, h.log.count("indicator.start"))
	assert.Equal(t, 1, h.log.count("indicator.stop"))
}

func TestRunTokenMissing(t *testing.T) {
	h := newHarness()
	h.service.regTokenFound = false
	h.service.regToken = ""

	res, err := h.orchestrator().Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTokenMissing)
	assert.Equal(t, ReasonTokenMissing, ReasonOf(err))
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, h.log.count("service.register"), "no registration form may be posted")
	assert.Zero(t, h.log.count("mailbox.poll"))
	assert.Equal(t, 1, h.log.count("warn:CSRF token not found on registration page."))
}

func TestRunRegistrationRejected(t *testing.T) {
	h := newHarness()
	h.service.registerStatus = 302

	_, err := h.orchestrator().Run(context.Background())
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "registration", rejected.Step)
	assert.Equal(t, 302, rejected.StatusCode)
	assert.Equal(t, ReasonRegistrationRejected, ReasonOf(err))
	assert.Equal(t, 1, h.log.count("warn:Cannot register! server returned 302"))

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, StateMailboxCreated, failure.From)
}

func TestRunRegistrationPageUnreachable(t *testing.T) {
	h := newHarness()
	h.service.regTokenErr = errors.New("connection reset")

	_, err := h.orchestrator().Run(context.Background())
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Zero(t, rejected.StatusCode)
	assert.Zero(t, h.log.count("service.register"))
}

func TestRunMailboxCreationFails(t *testing.T) {
	h := newHarness()
	h.mailbox.createErr = &source.ProviderError{Op: "get_email_address", StatusCode: 503, Err: errors.New("down")}

	res, err := h.orchestrator().Run(context.Background())
	require.Error(t, err)

	assert.True(t, source.IsProviderError(err))
	assert.Equal(t, ReasonMailbox, ReasonOf(err))
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, h.log.count("service.registration_token"))
}

func TestRunPollErrorIsFatal(t *testing.T) {
	h := newHarness()
	h.mailbox.pollErr = &source.ProviderError{Op: "check_email", Err: errors.New("timeout")}

	_, err := h.orchestrator().Run(context.Background())
	require.Error(t, err)

	assert.True(t, source.IsProviderError(err))
	assert.Equal(t, ReasonMailbox, ReasonOf(err))
	assert.Equal(t, 1, h.log.count("indicator.stop"))
	assert.Zero(t, h.log.count("service.activate"))
}

func TestRunActivationRejected(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{{activationMail("2")}}
	h.service.activateStatus = 403

	res, err := h.orchestrator().Run(context.Background())
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "activation", rejected.Step)
	assert.Equal(t, 403, rejected.StatusCode)
	assert.Equal(t, ReasonActivationRejected, ReasonOf(err))
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, h.log.count("service.login_token"))
	assert.Zero(t, h.log.count("service.login"))
	assert.Equal(t, 1, h.log.count("service.activate"), "activation is never retried")
}

func TestRunActivationLinkMissing(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{{{ID: "2", Sender: testSender, Body: "<p>no link here</p>"}}}

	_, err := h.orchestrator().Run(context.Background())
	require.Error(t, err)

	var extraction *ExtractionError
	require.ErrorAs(t, err, &extraction)
	assert.Equal(t, "activation link", extraction.What)
	assert.Equal(t, ReasonLinkMissing, ReasonOf(err))
	assert.Zero(t, h.log.count("service.activate"))
}

func TestRunLoginFailedIsNotFatal(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{{activationMail("2")}}
	h.service.loginStatus = 401

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateActivated, res.State)
	assert.ErrorIs(t, res.LoginErr, ErrLoginFailed)
	assert.Empty(t, res.Credential)
	assert.Zero(t, h.log.count("service.account_page"))
	assert.Equal(t, 1, h.log.count("warn:Login failed!"))
}

func TestRunLoginTransportErrorIsNotFatal(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{{activationMail("2")}}
	h.service.loginErr = errors.New("connection reset")

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateActivated, res.State)
	assert.ErrorIs(t, res.LoginErr, ErrLoginFailed)
}

func TestRunLoginWithoutToken(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{{activationMail("2")}}
	h.service.loginTokenErr = errors.New("login page status 500")

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, h.service.loginSubmitToken)
	assert.Equal(t, testKey, res.Credential)
}

func TestRunCredentialMissingIsNotFatal(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{{activationMail("2")}}
	h.service.accountPage = "<html>nothing to see</html>"

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Credential)

	var extraction *ExtractionError
	require.ErrorAs(t, res.CredentialErr, &extraction)
	assert.Equal(t, "credential", extraction.What)
	assert.Equal(t, 1, h.log.count("warn:Could not find API key."))
	assert.Equal(t, 1, h.log.count("service.account_page"))
}

func TestRunIgnoresOtherSenders(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{
		{{ID: "2", Sender: "welcome@guerrillamail.com", Body: `<a href="https://y/activate/WRONG">x</a>`}},
		nil,
		{activationMail("5")},
	}

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"https://x/activate/TOKEN123"}, h.service.activatedLinks)
	assert.Equal(t, 2, h.log.count("indicator.start"))
	assert.Equal(t, 2, h.log.count("indicator.stop"))
	assert.Equal(t, model.Cursor(5), res.Cursor)
}

func TestRunWaitsIntervalAfterIgnoredBatch(t *testing.T) {
	h := newHarness()
	h.mailbox.batches = [][]model.Message{
		{{ID: "2", Sender: "welcome@guerrillamail.com", Body: "hello"}},
		{activationMail("3")},
	}
	var stamps []time.Time
	h.mailbox.onPoll = func(int) { stamps = append(stamps, time.Now()) }

	interval := 40 * time.Millisecond
	orch := New(h.mailbox, h.service,
		Config{NotifySender: testSender, PollInterval: interval, StartCursor: 1},
		WithIndicator(fakeIndicator{log: h.log}),
		WithReporter(fakeReporter{log: h.log}),
	)

	res, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)

	require.Len(t, stamps, 2)
	gap := stamps[1].Sub(stamps[0])
	assert.True(t, gap >= interval, "second check after %s", gap)
}

func TestRunProcessesOnlyFirstQualifyingMessage(t *testing.T) {
	h := newHarness()
	second := activationMail("4")
	second.Body = `<a href="https://x/activate/SECOND">x</a>`
	h.mailbox.batches = [][]model.Message{{activationMail("3"), second}}

	_, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://x/activate/TOKEN123"}, h.service.activatedLinks)
	assert.Zero(t, h.log.count("mailbox.fetch:4"))
	assert.Equal(t, 1, h.log.count("mailbox.poll"), "the loop ends after the qualifying message")
}

func TestRunSenderWithDisplayName(t *testing.T) {
	h := newHarness()
	msg := activationMail("2")
	msg.Sender = "Shodan <No-Reply@mg.shodan.io>"
	h.mailbox.batches = [][]model.Message{{msg}}

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
}

func TestRunInterruptedWhileAwaitingEmail(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.mailbox.onPoll = func(call int) {
		if call == 2 {
			h.log.add("cancel")
			cancel()
		}
	}

	res, err := h.orchestrator().Run(ctx)
	require.Error(t, err)

	assert.True(t, IsInterrupted(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonInterrupted, ReasonOf(err))
	assert.Equal(t, StateFailed, res.State)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, StateAwaitingEmail, failure.From)

	// The indicator is torn down, and nothing touches the network after
	// the cancellation.
	entries := h.log.all()
	cancelAt := h.log.index("cancel")
	require.NotEqual(t, -1, cancelAt)
	assert.Equal(t, []string{"indicator.stop"}, entries[cancelAt+1:])
}

func TestRunInterruptedBeforeStart(t *testing.T) {
	h := newHarness()
	h.mailbox.createErr = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orchestrator().Run(ctx)
	require.Error(t, err)
	assert.True(t, IsInterrupted(err))
	assert.Zero(t, h.log.count("service.registration_token"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_email", StateAwaitingEmail.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateActivated.Terminal())
}
