package queue

import "github.com/pkg/errors"

// ErrFailed's message prefixes the error Err returns once a queue has
// transitioned to its fail-stop state after a journal I/O error; that
// error wraps the underlying I/O cause, not ErrFailed itself.
var ErrFailed = errors.New("queue unusable after journal I/O failure")
