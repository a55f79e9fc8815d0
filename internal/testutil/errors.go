package testutil

import "errors"

// ErrSimulated is returned by test doubles that fail on purpose.
var ErrSimulated = errors.New("testutil: simulated failure")
