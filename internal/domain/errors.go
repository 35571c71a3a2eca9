package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration   = errors.New("invalid configuration")
	ErrAlreadyActive   = errors.New("stream session already active")
	ErrProfileNotFound = errors.New("profile not found")
	ErrSecretNotFound  = errors.New("secret not found")
)

// ConfigurationError reports missing identity, credentials or query parameters.
// It is always returned before any network call is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configError(field string, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError is a transport-level failure: DNS, TCP, TLS or a timeout
// before any response was received.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type UnsupportedEncodingError struct {
	Encoding string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("unsupported response encoding received [%s]", e.Encoding)
}

// MalformedStreamError reports bytes that cannot form a JSON value. Fatal
// errors end the connection; non-fatal ones cover a single skipped value.
type MalformedStreamError struct {
	Offset int64
	Reason string
	Fatal  bool
	Err    error
}

func (e *MalformedStreamError) Error() string {
	msg := fmt.Sprintf("malformed stream at byte %d: %s", e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedStreamError) Unwrap() error {
	return e.Err
}

// StatusError is emitted when a stream endpoint answers with a non-success status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// RuleListError carries the remote status code. Code is zero when the
// request failed before a response was received; Err then holds the cause.
type RuleListError struct {
	Code int
	Err  error
}

func (e *RuleListError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("rules could not be listed: %v", e.Err)
	}
	return fmt.Sprintf("rules could not be listed. Response Code: %d", e.Code)
}

func (e *RuleListError) Unwrap() error {
	return e.Err
}

type RuleAddError struct {
	Code int
	Err  error
}

func (e *RuleAddError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("new rules could not be added: %v", e.Err)
	}
	return fmt.Sprintf("new rules could not be added. Response Code: %d", e.Code)
}

func (e *RuleAddError) Unwrap() error {
	return e.Err
}

type RuleRemoveError struct {
	Code int
	Err  error
}

func (e *RuleRemoveError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("rules could not be removed: %v", e.Err)
	}
	return fmt.Sprintf("rules could not be removed. Response Code: %d", e.Code)
}

func (e *RuleRemoveError) Unwrap() error {
	return e.Err
}

type PayloadTooLargeError struct{}

func (e *PayloadTooLargeError) Error() string {
	return "request too large, try breaking the rules into smaller batches"
}

// InvalidRuleError carries the remote response body explaining the rejection.
type InvalidRuleError struct {
	Body string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("rule is invalid. Response Code: 422; Message: %s", e.Body)
}
