package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// FetchErrorCode categorizes per-channel fetch failures.
type FetchErrorCode string

const (
	// ErrCodeFetchFailed indicates the retriever returned an error.
	ErrCodeFetchFailed FetchErrorCode = "FETCH_FAILED"

	// ErrCodeFetchPanic indicates the retriever panicked.
	ErrCodeFetchPanic FetchErrorCode = "FETCH_PANIC"

	// ErrCodeFetchTimeout indicates the fetch ran past its deadline or the
	// caller's context was cancelled.
	ErrCodeFetchTimeout FetchErrorCode = "FETCH_TIMEOUT"
)

// FetchError records a failed history fetch for one channel.
// A FetchError never aborts a catch-up; the channel contributes no chunks.
type FetchError struct {
	Code     FetchErrorCode `json:"code"`
	Channel  chunk.Channel  `json:"channel"`
	DialogID string         `json:"dialog_id"`
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s chunks for dialog %s: %v", e.Code, e.Channel, e.DialogID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MarshalJSON includes the underlying error text.
func (e *FetchError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Code     FetchErrorCode `json:"code"`
		Channel  chunk.Channel  `json:"channel"`
		DialogID string         `json:"dialog_id"`
		Message  string         `json:"message"`
	}{e.Code, e.Channel, e.DialogID, msg})
}

// IsFetchTimeout returns true if err is a FetchError caused by a deadline
// or cancellation.
func IsFetchTimeout(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeFetchTimeout
	}
	return false
}

func newFetchError(dialogID string, ch chunk.Channel, err error) *FetchError {
	code := ErrCodeFetchFailed
	if isContextError(err) {
		code = ErrCodeFetchTimeout
	}
	return &FetchError{Code: code, Channel: ch, DialogID: dialogID, Err: err}
}
