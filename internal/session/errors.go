package session

import "errors"

// ErrSessionNotFound is returned by TouchSession when the record is gone.
var ErrSessionNotFound = errors.New("session not found")
