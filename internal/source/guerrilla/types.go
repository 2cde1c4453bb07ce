package guerrilla

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// MailID is a message identifier. The provider sends it as a JSON string
// in some responses and as a number in others.
type MailID string

// UnmarshalJSON accepts both "123" and 123.
func (id *MailID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MailID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("mail_id must be a string or number: %w", err)
	}
	*id = MailID(n.String())
	return nil
}

// Seq returns the numeric sequence value of the ID, if it has one.
func (id MailID) Seq() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// AddressResponse is the body of get_email_address.
type AddressResponse struct {
	EmailAddr      string `json:"email_addr"`
	EmailTimestamp int64  `json:"email_timestamp"`
	Alias          string `json:"alias"`
	SIDToken       string `json:"sid_token"`
}

// ListEntry is one message in a check_email listing.
type ListEntry struct {
	MailID      MailID `json:"mail_id"`
	MailFrom    string `json:"mail_from"`
	MailSubject string `json:"mail_subject"`
	MailExcerpt string `json:"mail_excerpt"`
}

// CheckResponse is the body of check_email.
type CheckResponse struct {
	List     []ListEntry `json:"list"`
	Count    json.Number `json:"count"`
	SIDToken string      `json:"sid_token"`
}

// FetchResponse is the body of fetch_email.
type FetchResponse struct {
	MailID      MailID `json:"mail_id"`
	MailFrom    string `json:"mail_from"`
	MailSubject string `json:"mail_subject"`
	MailBody    string `json:"mail_body"`
}
