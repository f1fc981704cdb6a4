package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/infinicraft/internal/validator"
)

// MergeErrorCode categorizes merge failures that reach the caller.
type MergeErrorCode string

const (
	// ErrCodeBusy indicates another operation holds the gate. Nothing changed.
	ErrCodeBusy MergeErrorCode = "BUSY"

	// ErrCodeNotFound indicates an instance left the canvas or its element
	// left the catalog before the merge started.
	ErrCodeNotFound MergeErrorCode = "NOT_FOUND"

	// ErrCodeInvalidPair indicates an instance was dropped onto itself.
	ErrCodeInvalidPair MergeErrorCode = "INVALID_PAIR"

	// ErrCodeGenerationExhausted indicates no attempt produced an acceptable
	// candidate. Both instances are left as they were.
	ErrCodeGenerationExhausted MergeErrorCode = "GENERATION_EXHAUSTED"
)

// MergeError is returned by Engine.Merge.
type MergeError struct {
	// Code identifies the error category.
	Code MergeErrorCode

	// Message is a human-readable description.
	Message string

	// SourceID and TargetID are the instance ids of the request.
	SourceID string
	TargetID string

	// Attempts is the number of generator calls made (exhausted merges only).
	Attempts int

	// Err holds the joined attempt errors, if any.
	Err error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SourceID != "" || e.TargetID != "" {
		msg += fmt.Sprintf(" (source=%s, target=%s)", e.SourceID, e.TargetID)
	}
	return msg
}

// Unwrap exposes the underlying attempt errors.
func (e *MergeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of a MergeError in err's chain, or "".
func CodeOf(err error) MergeErrorCode {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsBusy reports whether err is a BUSY merge error.
func IsBusy(err error) bool {
	return CodeOf(err) == ErrCodeBusy
}

// IsNotFound reports whether err is a NOT_FOUND merge error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsExhausted reports whether err is a GENERATION_EXHAUSTED merge error.
func IsExhausted(err error) bool {
	return CodeOf(err) == ErrCodeGenerationExhausted
}

// AttemptErrorCode categorizes why a single generation attempt failed.
type AttemptErrorCode string

const (
	// ErrCodeGenerationClient indicates the generator call itself failed.
	ErrCodeGenerationClient AttemptErrorCode = "GENERATION_CLIENT_ERROR"

	// ErrCodeNoCandidate indicates the response held no parseable JSON object.
	ErrCodeNoCandidate AttemptErrorCode = "NO_CANDIDATE"

	// ErrCodeValidationRejected indicates the candidate failed a validator rule.
	ErrCodeValidationRejected AttemptErrorCode = "VALIDATION_REJECTED"
)

// AttemptError records one failed attempt. Attempt errors are recovered inside
// the retry loop; they only surface joined inside an exhausted MergeError.
type AttemptError struct {
	Attempt int
	Code    AttemptErrorCode
	Rule    validator.Rule
	Err     error
}

// Error implements the error interface.
func (e *AttemptError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("attempt %d: %s (%s): %v", e.Attempt, e.Code, e.Rule, e.Err)
	}
	return fmt.Sprintf("attempt %d: %s: %v", e.Attempt, e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *AttemptError) Unwrap() error {
	return e.Err
}

func newMergeError(code MergeErrorCode, sourceID, targetID, format string, args ...any) *MergeError {
	return &MergeError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		SourceID: sourceID,
		TargetID: targetID,
	}
}
