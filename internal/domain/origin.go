package domain

// OriginKind describes the privilege level a request was made with.
type OriginKind int

const (
	// OriginNone is an unauthenticated request.
	OriginNone OriginKind = iota
	// OriginSigned is a request made by an authenticated account.
	OriginSigned
	// OriginRoot is an administrative request.
	OriginRoot
)

// Origin is the caller identity derived from a request.
type Origin struct {
	Kind    OriginKind
	Account AccountID
}

func None() Origin                    { return Origin{Kind: OriginNone} }
func Root() Origin                    { return Origin{Kind: OriginRoot} }
func Signed(account AccountID) Origin { return Origin{Kind: OriginSigned, Account: account} }
