package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Overland-East-Bay/club-registry/internal/app/clubs"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/platform/logger"
	"github.com/Overland-East-Bay/club-registry/internal/platform/serial"
	clockport "github.com/Overland-East-Bay/club-registry/internal/ports/out/clock"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/idempotency"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// Server is the HTTP adapter for the club registry.
type Server struct {
	Clubs *clubs.Service
	Idem  idempotency.Store

	exec   *serial.Executor
	admins map[domain.AccountID]bool
	clk    clockport.Clock
}

type ServerOptions struct {
	// Executor serializes registry operations. Nil runs them on the request goroutine,
	// which is only safe when requests are not concurrent.
	Executor *serial.Executor
	// AdminSubjects act with the Root origin when creating clubs.
	AdminSubjects []string
	// Clock stamps idempotency records. Defaults to wall time.
	Clock clockport.Clock
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

func NewServer(svc *clubs.Service, idem idempotency.Store, opts ServerOptions) *Server {
	admins := make(map[domain.AccountID]bool, len(opts.AdminSubjects))
	for _, a := range opts.AdminSubjects {
		if id := domain.NormalizeAccountID(a); id != "" {
			admins[id] = true
		}
	}
	clk := opts.Clock
	if clk == nil {
		clk = wallClock{}
	}
	return &Server{
		Clubs:  svc,
		Idem:   idem,
		exec:   opts.Executor,
		admins: admins,
		clk:    clk,
	}
}

func (s *Server) CreateClub(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body CreateClubRequest
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(w, r, err)
		return
	}
	details := map[string]any{}
	if body.ClubId == nil {
		details["clubId"] = "required"
	}
	if body.AnnualExpenses == nil {
		details["annualExpenses"] = "required"
	}
	if len(details) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing required fields", details)
		return
	}
	body.Owner = string(domain.NormalizeAccountID(body.Owner))
	clubID := domain.ClubID(*body.ClubId)

	origin := domain.Signed(caller)
	if s.admins[caller] {
		origin = domain.Root()
	}

	s.mutate(w, r, caller, body, http.StatusCreated, func(ctx context.Context) (any, error) {
		if err := s.Clubs.CreateClub(ctx, origin, domain.AccountID(body.Owner), clubID, *body.AnnualExpenses); err != nil {
			return nil, err
		}
		return s.clubResponse(ctx, clubID)
	})
}

func (s *Server) GetClub(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	clubID, err := clubIDParam(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	var resp ClubResponse
	err = s.serialize(r.Context(), func(ctx context.Context) error {
		var err error
		resp, err = s.clubResponse(ctx, clubID)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	clubID, err := clubIDParam(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	var body TransferOwnershipRequest
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(w, r, err)
		return
	}
	body.NewOwner = string(domain.NormalizeAccountID(body.NewOwner))

	s.mutate(w, r, caller, body, http.StatusOK, func(ctx context.Context) (any, error) {
		if err := s.Clubs.TransferOwnership(ctx, domain.Signed(caller), domain.AccountID(body.NewOwner), clubID); err != nil {
			return nil, err
		}
		return s.clubResponse(ctx, clubID)
	})
}

func (s *Server) SetAnnualExpense(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	clubID, err := clubIDParam(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	var body SetAnnualExpenseRequest
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(w, r, err)
		return
	}
	if body.AnnualExpenses == nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing required fields", map[string]any{"annualExpenses": "required"})
		return
	}

	s.mutate(w, r, caller, body, http.StatusOK, func(ctx context.Context) (any, error) {
		if err := s.Clubs.SetAnnualExpense(ctx, domain.Signed(caller), clubID, *body.AnnualExpenses); err != nil {
			return nil, err
		}
		return s.clubResponse(ctx, clubID)
	})
}

func (s *Server) AddMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	clubID, err := clubIDParam(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	var body AddMemberRequest
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(w, r, err)
		return
	}
	body.Member = string(domain.NormalizeAccountID(body.Member))

	s.mutate(w, r, caller, body, http.StatusCreated, func(ctx context.Context) (any, error) {
		if err := s.Clubs.AddMember(ctx, domain.Signed(caller), clubID, domain.AccountID(body.Member)); err != nil {
			return nil, err
		}
		return s.clubResponse(ctx, clubID)
	})
}

func (s *Server) PayMembershipExpense(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	clubID, err := clubIDParam(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	var body PayMembershipExpenseRequest
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(w, r, err)
		return
	}
	if body.Amount == nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing required fields", map[string]any{"amount": "required"})
		return
	}

	s.mutate(w, r, caller, body, http.StatusOK, func(ctx context.Context) (any, error) {
		paid, err := s.Clubs.PayMembershipExpense(ctx, domain.Signed(caller), clubID, *body.Amount)
		if err != nil {
			return nil, err
		}
		return PaymentResponse{
			ClubId:      uint32(clubID),
			Member:      string(caller),
			PaidThrough: momentFromDomain(paid),
		}, nil
	})
}

func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	account, err := accountIDParam(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	var bal uint64
	err = s.serialize(r.Context(), func(ctx context.Context) error {
		var err error
		bal, err = s.Clubs.Balance(ctx, account)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Account: string(account), Balance: strconv.FormatUint(bal, 10)})
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.AccountID, bool) {
	if id, ok := SubjectFromContext(r.Context()); ok {
		return id, true
	}
	writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
	return "", false
}

func (s *Server) clubResponse(ctx context.Context, clubID domain.ClubID) (ClubResponse, error) {
	c, err := s.Clubs.GetClub(ctx, clubID)
	if err != nil {
		return ClubResponse{}, err
	}
	return clubFromDomain(clubID, c), nil
}

func (s *Server) serialize(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.exec == nil {
		return fn(ctx)
	}
	return s.exec.Do(ctx, fn)
}

// mutate runs fn on the serial executor and writes its result with status.
//
// Idempotency handling (when the request carries an Idempotency-Key):
// - Replay if same caller+key+route+bodyHash
// - Reject if same caller+key+route with different bodyHash (409)
// The lookup, the operation and the record write happen inside one serialized job so
// concurrent retries cannot both apply.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, caller domain.AccountID, body any, status int, fn func(ctx context.Context) (any, error)) {
	key := idempotency.Key(strings.TrimSpace(r.Header.Get(headerIdempotencyKey)))
	useIdem := key != "" && s.Idem != nil

	var bodyHash string
	if useIdem {
		h, err := hashBody(body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		bodyHash = h
	}
	metaFP := idempotency.Fingerprint{
		Key:      key,
		Subject:  caller,
		Method:   r.Method,
		Route:    r.URL.Path,
		BodyHash: "",
	}
	respFP := metaFP
	respFP.BodyHash = bodyHash

	var (
		replay   *idempotency.Record
		reused   bool
		response []byte
	)
	err := s.serialize(r.Context(), func(ctx context.Context) error {
		if useIdem {
			meta, ok, err := s.Idem.Get(ctx, metaFP)
			if err != nil {
				return err
			}
			if ok && string(meta.Body) != bodyHash {
				reused = true
				return nil
			}
			if !ok {
				if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
					StatusCode:  0,
					ContentType: "text/plain",
					Body:        []byte(bodyHash),
					CreatedAt:   s.clk.Now().UTC(),
				}); err != nil {
					return err
				}
			}
			if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
				return err
			} else if ok && rec.StatusCode == status && strings.HasPrefix(rec.ContentType, "application/json") {
				replay = &rec
				return nil
			}
		}

		out, err := fn(ctx)
		if err != nil {
			return err
		}
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		b = append(b, '\n')
		response = b

		// Store successful response for replay.
		if useIdem {
			if err := s.Idem.Put(ctx, respFP, idempotency.Record{
				StatusCode:  status,
				ContentType: "application/json",
				Body:        b,
				CreatedAt:   s.clk.Now().UTC(),
			}); err != nil {
				logger.FromContext(ctx, nil).Warn("idempotency record not stored", zap.String("route", respFP.Route), zap.Error(err))
			}
		}
		return nil
	})
	switch {
	case err != nil:
		s.writeError(w, r, err)
	case reused:
		writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
	case replay != nil:
		w.Header().Set("Content-Type", replay.ContentType)
		w.Header().Set(headerReplayed, "true")
		w.WriteHeader(replay.StatusCode)
		_, _ = w.Write(replay.Body)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(response)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, serial.ErrClosed):
		writeError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "server is shutting down", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "request cancelled", nil)
	default:
		writeAppError(w, r, err)
	}
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
}

// hashBody hashes the normalized request body. Route and caller are part of the
// fingerprint itself.
func hashBody(body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
