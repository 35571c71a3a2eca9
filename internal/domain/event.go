package domain

// ComplianceIdentity holds the identifiers of one compliance result. Either
// field is nil when the result does not carry it.
type ComplianceIdentity struct {
	ActivityID *string `json:"activity_id"`
	UserID     *string `json:"user_id"`
}

// Event is one emission on a channel. Which fields are set depends on the
// channel kind:
//
//	data, verb:*, failure           Activity is the full decoded value
//	summary                         Activity is the summary object
//	event:*, product:*, stream_type:*  Activity is the result entry, Identity is set
//	page:next                       Cursor, nil when the page has no next token
//	page:is_last                    IsLast
//	error, request_too_large,
//	unprocessable_entity            Err
//	success                         Rules for a listing, Report for add/remove/update
type Event struct {
	Channel  Channel
	Activity Activity
	Identity ComplianceIdentity
	Cursor   *string
	IsLast   bool
	Err      error
	Rules    RuleSet
	Report   any
}

func ErrorEvent(err error) Event {
	return Event{Channel: ErrorChannel, Err: err}
}
