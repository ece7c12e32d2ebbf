package common

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorType is the conceptual layer an rpc-error originated in.
type ErrorType string

// Error types.
const (
	ErrorTypeTransport   ErrorType = "transport"
	ErrorTypeRPC         ErrorType = "rpc"
	ErrorTypeProtocol    ErrorType = "protocol"
	ErrorTypeApplication ErrorType = "application"
)

var errorTypes = map[ErrorType]bool{
	ErrorTypeTransport: true, ErrorTypeRPC: true, ErrorTypeProtocol: true, ErrorTypeApplication: true,
}

// UnmarshalText accepts only the error types defined by RFC6241.
func (t *ErrorType) UnmarshalText(text []byte) error {
	v := ErrorType(strings.TrimSpace(string(text)))
	if !errorTypes[v] {
		return errors.Errorf("unknown error-type %q", v)
	}
	*t = v
	return nil
}

// ErrorTag identifies an rpc-error condition.
type ErrorTag string

// Error tags.
const (
	ErrorTagInUse                 ErrorTag = "in-use"
	ErrorTagInvalidValue          ErrorTag = "invalid-value"
	ErrorTagTooBig                ErrorTag = "too-big"
	ErrorTagMissingAttribute      ErrorTag = "missing-attribute"
	ErrorTagBadAttribute          ErrorTag = "bad-attribute"
	ErrorTagUnknownAttribute      ErrorTag = "unknown-attribute"
	ErrorTagMissingElement        ErrorTag = "missing-element"
	ErrorTagBadElement            ErrorTag = "bad-element"
	ErrorTagUnknownElement        ErrorTag = "unknown-element"
	ErrorTagUnknownNamespace      ErrorTag = "unknown-namespace"
	ErrorTagAccessDenied          ErrorTag = "access-denied"
	ErrorTagLockDenied            ErrorTag = "lock-denied"
	ErrorTagResourceDenied        ErrorTag = "resource-denied"
	ErrorTagRollbackFailed        ErrorTag = "rollback-failed"
	ErrorTagDataExists            ErrorTag = "data-exists"
	ErrorTagDataMissing           ErrorTag = "data-missing"
	ErrorTagOperationNotSupported ErrorTag = "operation-not-supported"
	ErrorTagOperationFailed       ErrorTag = "operation-failed"
	ErrorTagPartialOperation      ErrorTag = "partial-operation"
	ErrorTagMalformedMessage      ErrorTag = "malformed-message"
)

var errorTags = map[ErrorTag]bool{
	ErrorTagInUse: true, ErrorTagInvalidValue: true, ErrorTagTooBig: true, ErrorTagMissingAttribute: true,
	ErrorTagBadAttribute: true, ErrorTagUnknownAttribute: true, ErrorTagMissingElement: true,
	ErrorTagBadElement: true, ErrorTagUnknownElement: true, ErrorTagUnknownNamespace: true,
	ErrorTagAccessDenied: true, ErrorTagLockDenied: true, ErrorTagResourceDenied: true,
	ErrorTagRollbackFailed: true, ErrorTagDataExists: true, ErrorTagDataMissing: true,
	ErrorTagOperationNotSupported: true, ErrorTagOperationFailed: true, ErrorTagPartialOperation: true,
	ErrorTagMalformedMessage: true,
}

// UnmarshalText accepts only the error tags defined by RFC6241.
func (t *ErrorTag) UnmarshalText(text []byte) error {
	v := ErrorTag(strings.TrimSpace(string(text)))
	if !errorTags[v] {
		return errors.Errorf("unknown error-tag %q", v)
	}
	*t = v
	return nil
}

// ErrorSeverity is the severity of an rpc-error.
type ErrorSeverity string

// Error severities.
const (
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// UnmarshalText accepts only error and warning.
func (s *ErrorSeverity) UnmarshalText(text []byte) error {
	v := ErrorSeverity(strings.TrimSpace(string(text)))
	if v != SeverityError && v != SeverityWarning {
		return errors.Errorf("unknown error-severity %q", v)
	}
	*s = v
	return nil
}

// ErrorInfo holds the protocol or data-model specific content of an rpc-error.
type ErrorInfo struct {
	SessionID    *uint32 `xml:"session-id,omitempty"`
	BadAttribute string  `xml:"bad-attribute,omitempty"`
	BadElement   string  `xml:"bad-element,omitempty"`
}

// RPCError defines an error reply to a RPC request
type RPCError struct {
	Type     ErrorType     `xml:"error-type"`
	Tag      ErrorTag      `xml:"error-tag"`
	Severity ErrorSeverity `xml:"error-severity"`
	AppTag   string        `xml:"error-app-tag,omitempty"`
	Path     string        `xml:"error-path,omitempty"`
	Message  string        `xml:"error-message,omitempty"`
	Info     *ErrorInfo    `xml:"error-info,omitempty"`
}

// Error generates a string representation of the RPC error
func (re *RPCError) Error() string {
	return fmt.Sprintf("netconf rpc [%s] %s/%s '%s'", re.Severity, re.Type, re.Tag, strings.TrimSpace(re.Message))
}

// RPCErrors is returned when the server answers a request with one or more rpc-error elements.
// The errors are kept in the order the server sent them.
type RPCErrors struct {
	MessageID uint32
	Errors    []RPCError
}

func (e *RPCErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for i := range e.Errors {
		msgs = append(msgs, e.Errors[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// Tags returns the error-tag of each error.
func (e *RPCErrors) Tags() []ErrorTag {
	tags := make([]ErrorTag, 0, len(e.Errors))
	for i := range e.Errors {
		tags = append(tags, e.Errors[i].Tag)
	}
	return tags
}

// DecodeError is returned when a message from the server cannot be interpreted.
type DecodeError struct {
	Raw string
	Err error
}

// NewDecodeError wraps the cause of a decode failure along with the offending message.
func NewDecodeError(raw string, err error) *DecodeError {
	return &DecodeError{Raw: raw, Err: err}
}

func (e *DecodeError) Error() string {
	return "malformed message: " + e.Err.Error()
}

// Cause returns the underlying error.
func (e *DecodeError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// MessageIDError is returned when the message-id of a reply does not match that of the request.
type MessageIDError struct {
	Sent     uint32
	Received uint32
}

func (e *MessageIDError) Error() string {
	return fmt.Sprintf("reply message-id %d does not match request message-id %d", e.Received, e.Sent)
}
