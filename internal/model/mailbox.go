package model

// MailboxHandle identifies the disposable mailbox created for a run.
// It is created once and never changes.
type MailboxHandle struct {
	Address string
}

// Cursor is the mailbox sequence number passed to each poll. Only messages
// with an ID above the cursor are returned by the provider.
type Cursor int64

// Advance returns the cursor moved past id. The result is never lower
// than c.
func (c Cursor) Advance(id int64) Cursor {
	if Cursor(id) > c {
		return Cursor(id)
	}
	return c
}

// MessageSummary is one entry of a mailbox listing.
type MessageSummary struct {
	ID      string
	Sender  string
	Subject string
}

// Message is a fully fetched email. It is read-only once retrieved.
type Message struct {
	ID      string
	Sender  string
	Subject string
	Body    string
}
