package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Policy configures the failure window and lockout.
type Policy struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int           // failures within Window that trigger a lock
	BlockFor time.Duration // lock duration
}

// DefaultPolicy allows five failures per 15 minutes, then locks for 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// PG stores limiter state in the auth_limiter table.
type PG struct {
	db     querier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter over a pool or connection.
func NewPG(db querier, p Policy) *PG {
	return &PG{db: db, policy: p, now: time.Now}
}

// Allow reports whether the pair is currently unlocked.
func (l *PG) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE email=$1 AND ip_hash=$2`
	var until time.Time
	err := l.db.QueryRow(ctx, q, email, ipHash).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if wait := until.Sub(l.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

// Success resets the counter for the pair.
func (l *PG) Success(ctx context.Context, email string, ipHash []byte) error {
	const q = `DELETE FROM auth_limiter WHERE email=$1 AND ip_hash=$2`
	_, err := l.db.Exec(ctx, q, email, ipHash)
	return err
}

// Failure bumps the counter (restarting it when the window elapsed) and locks at the threshold.
func (l *PG) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter (email, ip_hash, fail_count, updated_at)
VALUES ($1, $2, 1, now())
ON CONFLICT (email, ip_hash) DO UPDATE
SET fail_count = CASE
        WHEN now() - auth_limiter.updated_at > $3::interval THEN 1
        ELSE auth_limiter.fail_count + 1
    END,
    updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.db.QueryRow(ctx, q, email, ipHash, l.policy.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}
	const lock = `UPDATE auth_limiter SET blocked_until=$3, fail_count=0 WHERE email=$1 AND ip_hash=$2`
	if _, err := l.db.Exec(ctx, lock, email, ipHash, l.now().Add(l.policy.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
