package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxTextLen = 4096

var msisdnRE = regexp.MustCompile(`^\+\d+$`)

// ValidationError carries every constraint the payload violated.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation_error: " + strings.Join(e.Reasons, "; ")
}

// webhookPayload mirrors the wire format; "from" maps to from_msisdn.
type webhookPayload struct {
	MessageID string  `json:"message_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	TS        string  `json:"ts"`
	Text      *string `json:"text"`
}

// ValidateMessage decodes raw as a webhook payload and checks every field
// constraint. On any violation it returns a *ValidationError and no message;
// partial records are never returned.
func ValidateMessage(raw []byte) (*Message, error) {
	if !utf8.Valid(raw) {
		return nil, &ValidationError{Reasons: []string{"body is not valid UTF-8"}}
	}
	var p webhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ValidationError{Reasons: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}

	var reasons []string
	if p.MessageID == "" {
		reasons = append(reasons, "message_id must be a non-empty string")
	}
	if !msisdnRE.MatchString(p.From) {
		reasons = append(reasons, "from must be E.164-like (+digits)")
	}
	if !msisdnRE.MatchString(p.To) {
		reasons = append(reasons, "to must be E.164-like (+digits)")
	}
	if p.TS == "" || !strings.HasSuffix(p.TS, "Z") {
		reasons = append(reasons, "ts must be ISO-8601 UTC string with Z suffix")
	}
	if p.Text != nil && utf8.RuneCountInString(*p.Text) > maxTextLen {
		reasons = append(reasons, fmt.Sprintf("text too long (max %d)", maxTextLen))
	}
	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	return &Message{
		MessageID:  p.MessageID,
		FromMSISDN: p.From,
		ToMSISDN:   p.To,
		TS:         p.TS,
		Text:       p.Text,
	}, nil
}
