package clubs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/platform/logger"
	clockport "github.com/Overland-East-Bay/club-registry/internal/ports/out/clock"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/clubrepo"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/eventlog"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/ledger"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/txn"
)

const (
	opCreateClub           = "create_club"
	opTransferOwnership    = "transfer_ownership"
	opSetAnnualExpense     = "set_annual_expense"
	opAddMember            = "add_member"
	opPayMembershipExpense = "pay_membership_expense"
)

// Deps are the collaborators the registry runs against.
type Deps struct {
	Clubs  clubrepo.Repository
	Ledger ledger.Ledger
	Events eventlog.Publisher
	Tx     txn.Transactor
	Clock  clockport.Clock

	// Optional.
	Logger  *zap.Logger
	Metrics *Metrics
}

// Service implements the club registry state machine.
//
// It does no locking of its own: the caller must serialize operations (see
// internal/platform/serial). Each operation runs as one unit of work against one club.
type Service struct {
	clubs  clubrepo.Repository
	ledger ledger.Ledger
	events eventlog.Publisher
	tx     txn.Transactor
	clk    clockport.Clock

	log     *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer

	newEventID func() string
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		clubs:   d.Clubs,
		ledger:  d.Ledger,
		events:  d.Events,
		tx:      d.Tx,
		clk:     d.Clock,
		log:     log,
		metrics: d.Metrics,
		tracer:  otel.Tracer("github.com/Overland-East-Bay/club-registry/internal/app/clubs"),
		newEventID: func() string {
			return uuid.NewString()
		},
	}
}

// SetNewEventIDForTest overrides event ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewEventIDForTest(fn func() string) {
	if fn != nil {
		s.newEventID = fn
	}
}

// CreateClub installs a new club with an empty roster. Only a Root origin may create clubs.
// An existing record under clubID is replaced.
func (s *Service) CreateClub(ctx context.Context, o domain.Origin, owner domain.AccountID, clubID domain.ClubID, annualExpenses uint32) error {
	return s.apply(ctx, opCreateClub, clubID, func(ctx context.Context) (domain.Event, error) {
		if err := ensureRoot(o); err != nil {
			return domain.Event{}, err
		}
		if owner == "" {
			return domain.Event{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid owner", Details: map[string]any{"owner": "must be non-empty"}}
		}
		if err := s.clubs.Put(ctx, clubID, domain.NewClub(owner, annualExpenses)); err != nil {
			return domain.Event{}, fmt.Errorf("put club %d: %w", clubID, err)
		}
		return domain.Event{Kind: domain.EventClubCreated, ClubID: clubID}, nil
	})
}

// TransferOwnership hands the club to newOwner. Only the current owner may do this.
func (s *Service) TransferOwnership(ctx context.Context, o domain.Origin, newOwner domain.AccountID, clubID domain.ClubID) error {
	return s.apply(ctx, opTransferOwnership, clubID, func(ctx context.Context) (domain.Event, error) {
		_, c, err := s.loadOwnedClub(ctx, o, clubID)
		if err != nil {
			return domain.Event{}, err
		}
		if newOwner == "" {
			return domain.Event{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid newOwner", Details: map[string]any{"newOwner": "must be non-empty"}}
		}
		c.Owner = newOwner
		if err := s.clubs.Put(ctx, clubID, c); err != nil {
			return domain.Event{}, fmt.Errorf("put club %d: %w", clubID, err)
		}
		return domain.Event{Kind: domain.EventNewOwner, ClubID: clubID, NewOwner: newOwner}, nil
	})
}

// SetAnnualExpense replaces the club's dues rate. Only the owner may do this.
func (s *Service) SetAnnualExpense(ctx context.Context, o domain.Origin, clubID domain.ClubID, expense uint32) error {
	return s.apply(ctx, opSetAnnualExpense, clubID, func(ctx context.Context) (domain.Event, error) {
		_, c, err := s.loadOwnedClub(ctx, o, clubID)
		if err != nil {
			return domain.Event{}, err
		}
		c.AnnualExpenses = expense
		if err := s.clubs.Put(ctx, clubID, c); err != nil {
			return domain.Event{}, fmt.Errorf("put club %d: %w", clubID, err)
		}
		return domain.Event{Kind: domain.EventAnnualExpensesSet, ClubID: clubID}, nil
	})
}

// AddMember puts member on the roster with membership paid through now. An existing
// entry is overwritten.
//
// The owner is charged domain.MemberAdditionFee payable to themself. The transfer is a
// net no-op on a correct ledger but still fails when the owner cannot cover the fee.
func (s *Service) AddMember(ctx context.Context, o domain.Origin, clubID domain.ClubID, member domain.AccountID) error {
	return s.apply(ctx, opAddMember, clubID, func(ctx context.Context) (domain.Event, error) {
		owner, c, err := s.loadOwnedClub(ctx, o, clubID)
		if err != nil {
			return domain.Event{}, err
		}
		if member == "" {
			return domain.Event{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid member", Details: map[string]any{"member": "must be non-empty"}}
		}
		if err := s.transfer(ctx, owner, owner, domain.MemberAdditionFee); err != nil {
			return domain.Event{}, err
		}
		now := clockport.Moment(s.clk)
		c.Members[member] = now
		if err := s.clubs.Put(ctx, clubID, c); err != nil {
			return domain.Event{}, fmt.Errorf("put club %d: %w", clubID, err)
		}
		return domain.Event{Kind: domain.EventMemberAdded, ClubID: clubID, Member: member}, nil
	})
}

// PayMembershipExpense extends the calling member's paid-through moment by
// floor(amount / annual_expenses) periods. The club's annual_expenses is transferred
// from the member to the owner. It returns the new paid-through moment.
func (s *Service) PayMembershipExpense(ctx context.Context, o domain.Origin, clubID domain.ClubID, amount uint32) (domain.Moment, error) {
	var paidThrough domain.Moment
	err := s.apply(ctx, opPayMembershipExpense, clubID, func(ctx context.Context) (domain.Event, error) {
		caller, err := ensureSigned(o)
		if err != nil {
			return domain.Event{}, err
		}
		c, err := s.loadClub(ctx, clubID)
		if err != nil {
			return domain.Event{}, err
		}
		current, ok := c.PaidThrough(caller)
		if !ok {
			return domain.Event{}, withDetails(ErrClubDoesNotExist, map[string]any{"member": "caller is not a member of the club"})
		}
		next, err := domain.ExtendPaidThrough(current, c.AnnualExpenses, amount)
		if err != nil {
			return domain.Event{}, paymentError(err, c.AnnualExpenses)
		}
		if err := s.transfer(ctx, caller, c.Owner, uint64(c.AnnualExpenses)); err != nil {
			return domain.Event{}, err
		}
		c.Members[caller] = next
		if err := s.clubs.Put(ctx, clubID, c); err != nil {
			return domain.Event{}, fmt.Errorf("put club %d: %w", clubID, err)
		}
		paidThrough = next
		return domain.Event{Kind: domain.EventMembershipExpensePaid, ClubID: clubID, Member: caller}, nil
	})
	if err != nil {
		return 0, err
	}
	return paidThrough, nil
}

// GetClub returns the club registered under clubID.
func (s *Service) GetClub(ctx context.Context, clubID domain.ClubID) (domain.Club, error) {
	return s.loadClub(ctx, clubID)
}

// Balance returns the ledger balance of account.
func (s *Service) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	return s.ledger.Balance(ctx, account)
}

func (s *Service) transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error {
	err := s.ledger.Transfer(ctx, from, to, amount, ledger.AllowDeath)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrWouldReap):
		return withDetails(ErrInsufficientFunds, map[string]any{"account": string(from), "amount": amount})
	default:
		return fmt.Errorf("ledger transfer: %w", err)
	}
}

func paymentError(err error, rate uint32) error {
	switch {
	case errors.Is(err, domain.ErrTooManyTokens), errors.Is(err, domain.ErrMomentOverflow):
		return withDetails(ErrTooManyTokens, map[string]any{"maxAmount": domain.MaxPayment(rate)})
	case errors.Is(err, domain.ErrZeroAmount), errors.Is(err, domain.ErrZeroRate):
		return withDetails(ErrInvalidAmount, map[string]any{"amount": "must be positive"})
	default:
		return err
	}
}

// apply runs fn as one unit of work, then publishes the event it produced.
func (s *Service) apply(ctx context.Context, op string, clubID domain.ClubID, fn func(ctx context.Context) (domain.Event, error)) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "clubs."+op, trace.WithAttributes(
		attribute.String("club.operation", op),
		attribute.Int64("club.id", int64(clubID)),
	))
	defer span.End()

	log := logger.FromContext(ctx, s.log).With(zap.String("operation", op), zap.Uint32("club_id", uint32(clubID)))

	var ev domain.Event
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ev, err = fn(ctx)
		return err
	})
	if err != nil {
		s.metrics.observe(op, outcome(err), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		var ae *Error
		if !errors.As(err, &ae) {
			log.Error("club operation failed", zap.Error(err))
		} else {
			log.Debug("club operation rejected", zap.String("code", ae.Code))
		}
		return err
	}

	ev.ID = s.newEventID()
	ev.At = clockport.Moment(s.clk)
	if err := s.events.Publish(ctx, ev); err != nil {
		s.metrics.unpublished()
		log.Warn("event not published", zap.String("event_kind", string(ev.Kind)), zap.String("event_id", ev.ID), zap.Error(err))
	}

	s.metrics.observe(op, "ok", time.Since(start))
	span.SetStatus(codes.Ok, "")
	log.Debug("club operation applied", zap.String("event_kind", string(ev.Kind)))
	return nil
}

func outcome(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "INTERNAL"
}
