package clubrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/clubrepo"
)

// Repo is a Postgres implementation of clubrepo.Repository. It joins the
// transaction carried by ctx when there is one.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Get(ctx context.Context, id domain.ClubID) (domain.Club, error) {
	if r.pool == nil {
		return domain.Club{}, errors.New("nil postgres pool")
	}
	q := postgres.Conn(ctx, r.pool)

	var (
		owner string
		rate  int64
	)
	err := q.QueryRow(ctx, `
		SELECT owner, annual_expenses
		FROM clubs
		WHERE club_id = $1
	`, int64(id)).Scan(&owner, &rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Club{}, clubrepo.ErrNotFound
		}
		return domain.Club{}, err
	}
	c := domain.NewClub(domain.AccountID(owner), uint32(rate))

	rows, err := q.Query(ctx, `
		SELECT member, paid_through::text
		FROM club_members
		WHERE club_id = $1
	`, int64(id))
	if err != nil {
		return domain.Club{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var member, paidThrough string
		if err := rows.Scan(&member, &paidThrough); err != nil {
			return domain.Club{}, err
		}
		m, err := strconv.ParseUint(paidThrough, 10, 64)
		if err != nil {
			return domain.Club{}, fmt.Errorf("club %d member %q: bad paid_through %q: %w", id, member, paidThrough, err)
		}
		c.Members[domain.AccountID(member)] = domain.Moment(m)
	}
	if err := rows.Err(); err != nil {
		return domain.Club{}, err
	}
	return c, nil
}

func (r *Repo) Put(ctx context.Context, id domain.ClubID, c domain.Club) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	return postgres.InTx(ctx, r.pool, func(q postgres.Querier) error {
		if _, err := q.Exec(ctx, `
			INSERT INTO clubs (club_id, owner, annual_expenses, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (club_id) DO UPDATE SET
				owner = EXCLUDED.owner,
				annual_expenses = EXCLUDED.annual_expenses,
				updated_at = EXCLUDED.updated_at
		`, int64(id), string(c.Owner), int64(c.AnnualExpenses)); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM club_members WHERE club_id = $1`, int64(id)); err != nil {
			return err
		}
		if len(c.Members) == 0 {
			return nil
		}

		b := &pgx.Batch{}
		for member, paidThrough := range c.Members {
			b.Queue(`
				INSERT INTO club_members (club_id, member, paid_through)
				VALUES ($1, $2, $3::numeric)
			`, int64(id), string(member), strconv.FormatUint(uint64(paidThrough), 10))
		}
		br := q.SendBatch(ctx, b)
		for range c.Members {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		return br.Close()
	})
}
