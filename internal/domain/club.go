package domain

// Club is the registry record for a single club.
type Club struct {
	Owner AccountID
	// AnnualExpenses is the dues rate per membership period.
	AnnualExpenses uint32
	// Members maps each member to the moment through which their dues are paid.
	Members map[AccountID]Moment
}

// NewClub returns a club with an empty roster.
func NewClub(owner AccountID, annualExpenses uint32) Club {
	return Club{
		Owner:          owner,
		AnnualExpenses: annualExpenses,
		Members:        map[AccountID]Moment{},
	}
}

// Clone returns a deep copy so callers can mutate the roster without touching the original.
func (c Club) Clone() Club {
	out := c
	out.Members = make(map[AccountID]Moment, len(c.Members))
	for k, v := range c.Members {
		out.Members[k] = v
	}
	return out
}

// PaidThrough returns the member's paid-through moment and whether they are a member.
func (c Club) PaidThrough(member AccountID) (Moment, bool) {
	m, ok := c.Members[member]
	return m, ok
}

// IsMember reports whether account is on the roster.
func (c Club) IsMember(account AccountID) bool {
	_, ok := c.Members[account]
	return ok
}
