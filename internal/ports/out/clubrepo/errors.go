package clubrepo

import "errors"

// ErrNotFound indicates no club is registered under the requested id.
var ErrNotFound = errors.New("club not found")
