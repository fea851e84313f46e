package mailbox

import (
	"errors"
	"fmt"
)

// AuthError indicates the IMAP server rejected the supplied credentials.
// It is fatal for the scrape; callers should surface a "check
// credentials" message.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ConnectionError indicates a network or TLS failure while dialing the
// IMAP server. Fatal for the scrape.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to IMAP %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// FolderNotFoundError indicates the requested folder could not be
// selected. Fatal for the scrape; this is a configuration problem.
type FolderNotFoundError struct {
	Folder string
	Err    error
}

func (e *FolderNotFoundError) Error() string {
	return fmt.Sprintf("selecting folder %q: %v", e.Folder, e.Err)
}

func (e *FolderNotFoundError) Unwrap() error { return e.Err }

// IsFolderNotFound reports whether err is a FolderNotFoundError.
func IsFolderNotFound(err error) bool {
	var fnfErr *FolderNotFoundError
	return errors.As(err, &fnfErr)
}

// FetchError indicates a single message could not be fetched (missing,
// purged, or a transient network failure). Recoverable: the caller
// skips the message and continues the batch.
type FetchError struct {
	UID uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching message %d: %v", e.UID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is a FetchError.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
