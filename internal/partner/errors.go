package partner

import "errors"

// Failure kinds surfaced by the partner pipeline. Handlers map these to HTTP
// statuses; anything not matching one of them is treated as unexpected.
var (
	// ErrBadCredentials means the partner rejected the login (401).
	ErrBadCredentials = errors.New("bad credentials")
	// ErrSiteUnavailable means a transport-level failure (DNS, refused
	// connection, timeout) at any partner call. Never conflated with
	// ErrBadCredentials.
	ErrSiteUnavailable = errors.New("website unavailable")
	// ErrSessionVerification means login returned 200 but the follow-up
	// session check did not pass.
	ErrSessionVerification = errors.New("session verification failed")
	// ErrDownloadUnauthorized means the partner answered 401/403 on a file fetch.
	ErrDownloadUnauthorized = errors.New("download unauthorized")
	// ErrDownloadTimeout means a file fetch exceeded its deadline.
	ErrDownloadTimeout = errors.New("download timed out")
)
