package provision

// State is a step of the provisioning state machine.
type State int

const (
	StateStart State = iota
	StateMailboxCreated
	StateRegistered
	StateAwaitingEmail
	StateActivated
	StateLoggedIn
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateStart:          "start",
	StateMailboxCreated: "mailbox_created",
	StateRegistered:     "registered",
	StateAwaitingEmail:  "awaiting_email",
	StateActivated:      "activated",
	StateLoggedIn:       "logged_in",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Reason classifies why a run ended in StateFailed.
type Reason string

const (
	ReasonMailbox              Reason = "mailbox_error"
	ReasonTokenMissing         Reason = "token_missing"
	ReasonRegistrationRejected Reason = "registration_rejected"
	ReasonLinkMissing          Reason = "link_missing"
	ReasonActivationRejected   Reason = "activation_rejected"
	ReasonInterrupted          Reason = "interrupted"
)
