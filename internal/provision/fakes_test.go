package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/source"
)

// eventLog records the order in which collaborators are called.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *eventLog) count(entry string) int {
	n := 0
	for _, e := range l.all() {
		if e == entry {
			n++
		}
	}
	return n
}

func (l *eventLog) index(entry string) int {
	for i, e := range l.all() {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeMailbox struct {
	log       *eventLog
	address   string
	createErr error
	pollErr   error
	batches   [][]model.Message
	fetchErr  error
	onPoll    func(call int)

	polls    int
	messages map[string]model.Message
}

func (m *fakeMailbox) CreateMailbox(context.Context) (model.MailboxHandle, error) {
	m.log.add("mailbox.create")
	if m.createErr != nil {
		return model.MailboxHandle{}, m.createErr
	}
	return model.MailboxHandle{Address: m.address}, nil
}

func (m *fakeMailbox) PollOnce(_ context.Context, cursor model.Cursor) (source.PollResult, error) {
	m.polls++
	m.log.add("mailbox.poll")
	if m.onPoll != nil {
		m.onPoll(m.polls)
	}
	if m.pollErr != nil {
		return source.PollResult{Next: cursor}, m.pollErr
	}

	res := source.PollResult{Next: cursor}
	if len(m.batches) == 0 {
		return res, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]

	if m.messages == nil {
		m.messages = make(map[string]model.Message)
	}
	for _, msg := range batch {
		m.messages[msg.ID] = msg
		res.Messages = append(res.Messages, model.MessageSummary{ID: msg.ID, Sender: msg.Sender})
		var seq int64
		if _, err := fmt.Sscan(msg.ID, &seq); err == nil {
			res.Next = res.Next.Advance(seq)
		}
	}
	return res, nil
}

func (m *fakeMailbox) FetchMessage(_ context.Context, id string) (model.Message, error) {
	m.log.add("mailbox.fetch:%s", id)
	if m.fetchErr != nil {
		return model.Message{}, m.fetchErr
	}
	return m.messages[id], nil
}

type fakeService struct {
	log *eventLog

	regToken       string
	regTokenFound  bool
	regTokenErr    error
	registerStatus int
	activateStatus int
	activateErr    error
	loginToken     string
	loginTokenErr  error
	loginStatus    int
	loginErr       error
	accountPage    string
	accountErr     error

	registeredAddress string
	registeredToken   string
	activatedLinks    []string
	loginAddress      string
	loginSubmitToken  string
}

func newFakeService(log *eventLog) *fakeService {
	return &fakeService{
		log:            log,
		regToken:       "reg-token",
		regTokenFound:  true,
		registerStatus: 200,
		activateStatus: 204,
		loginToken:     "login-token",
		loginStatus:    200,
		accountPage:    `<input id="api_key" value="deadbeefdeadbeefdeadbeefdeadbeef">`,
	}
}

func (s *fakeService) RegistrationToken(context.Context) (string, bool, error) {
	s.log.add("service.registration_token")
	return s.regToken, s.regTokenFound, s.regTokenErr
}

func (s *fakeService) Register(_ context.Context, address, token string) (int, error) {
	s.log.add("service.register")
	s.registeredAddress = address
	s.registeredToken = token
	return s.registerStatus, nil
}

func (s *fakeService) Activate(_ context.Context, link string) (int, error) {
	s.log.add("service.activate")
	s.activatedLinks = append(s.activatedLinks, link)
	return s.activateStatus, s.activateErr
}

func (s *fakeService) LoginToken(context.Context) (string, bool, error) {
	s.log.add("service.login_token")
	if s.loginTokenErr != nil {
		return "", false, s.loginTokenErr
	}
	return s.loginToken, s.loginToken != "", nil
}

func (s *fakeService) Login(_ context.Context, address, token string) (int, error) {
	s.log.add("service.login")
	s.loginAddress = address
	s.loginSubmitToken = token
	return s.loginStatus, s.loginErr
}

func (s *fakeService) AccountPage(context.Context) (string, error) {
	s.log.add("service.account_page")
	return s.accountPage, s.accountErr
}

type fakeIndicator struct {
	log *eventLog
}

func (i fakeIndicator) Start(string) { i.log.add("indicator.start") }
func (i fakeIndicator) Stop()        { i.log.add("indicator.stop") }

type fakeReporter struct {
	log *eventLog
}

func (r fakeReporter) Info(msg string)       { r.log.add("info:%s", msg) }
func (r fakeReporter) Success(msg string)    { r.log.add("success:%s", msg) }
func (r fakeReporter) Warn(msg string)       { r.log.add("warn:%s", msg) }
func (r fakeReporter) Credential(key string) { r.log.add("credential:%s", key) }
