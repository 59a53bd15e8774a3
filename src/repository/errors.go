package repository

import "errors"

// ErrStaleRecord is returned by compare-and-swap writes when the row version moved
// since it was read. Callers are expected to reload and retry.
var ErrStaleRecord = errors.New("stale record: version changed since read")
