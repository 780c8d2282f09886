package domain

// EventKind names a club registry notification.
type EventKind string

const (
	EventClubCreated           EventKind = "ClubCreated"
	EventNewOwner              EventKind = "NewOwner"
	EventAnnualExpensesSet     EventKind = "AnnualExpensesSet"
	EventMemberAdded           EventKind = "MemberAdded"
	EventMembershipExpensePaid EventKind = "MembershipExpensePaid"
)

// Event is emitted once per successful state transition.
//
// Member is set for MemberAdded and MembershipExpensePaid; NewOwner is set for NewOwner.
type Event struct {
	ID       string
	Kind     EventKind
	ClubID   ClubID
	Member   AccountID
	NewOwner AccountID
	At       Moment
}
