package core

type Message struct {
	MessageID  string  `json:"message_id"`
	FromMSISDN string  `json:"from_msisdn"`
	ToMSISDN   string  `json:"to_msisdn"`
	TS         string  `json:"ts"`
	Text       *string `json:"text,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// DayCount is one row of the per-day aggregation, keyed by the
// YYYY-MM-DD prefix of ts.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type SenderCount struct {
	FromMSISDN string `json:"from_msisdn"`
	Count      int    `json:"count"`
}
