package domain

// ClubID identifies a club record. It is supplied by the administrative caller and is
// never generated by the registry.
type ClubID uint32

// AccountID is an opaque account identity supplied by the authentication layer
// (at the HTTP edge it is the JWT "sub" claim).
type AccountID string
