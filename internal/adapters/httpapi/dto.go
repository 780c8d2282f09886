package httpapi

import (
	"sort"
	"strconv"
	"time"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

type CreateClubRequest struct {
	ClubId         *uint32 `json:"clubId"`
	Owner          string  `json:"owner"`
	AnnualExpenses *uint32 `json:"annualExpenses"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"newOwner"`
}

type SetAnnualExpenseRequest struct {
	AnnualExpenses *uint32 `json:"annualExpenses"`
}

type AddMemberRequest struct {
	Member string `json:"member"`
}

type PayMembershipExpenseRequest struct {
	Amount *uint32 `json:"amount"`
}

// Moment is rendered both as the raw second count (a decimal string, since it may
// exceed 2^53) and as RFC 3339 time.
type Moment struct {
	Seconds string    `json:"seconds"`
	Time    time.Time `json:"time"`
}

type ClubMember struct {
	Account     string `json:"account"`
	PaidThrough Moment `json:"paidThrough"`
}

type ClubResponse struct {
	ClubId         uint32       `json:"clubId"`
	Owner          string       `json:"owner"`
	AnnualExpenses uint32       `json:"annualExpenses"`
	Members        []ClubMember `json:"members"`
}

type PaymentResponse struct {
	ClubId      uint32 `json:"clubId"`
	Member      string `json:"member"`
	PaidThrough Moment `json:"paidThrough"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

func momentFromDomain(m domain.Moment) Moment {
	return Moment{Seconds: strconv.FormatUint(uint64(m), 10), Time: m.Time()}
}

func clubFromDomain(id domain.ClubID, c domain.Club) ClubResponse {
	out := ClubResponse{
		ClubId:         uint32(id),
		Owner:          string(c.Owner),
		AnnualExpenses: c.AnnualExpenses,
		Members:        make([]ClubMember, 0, len(c.Members)),
	}
	for acct, paid := range c.Members {
		out.Members = append(out.Members, ClubMember{Account: string(acct), PaidThrough: momentFromDomain(paid)})
	}
	sort.Slice(out.Members, func(i, j int) bool { return out.Members[i].Account < out.Members[j].Account })
	return out
}
