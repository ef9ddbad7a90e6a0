package postgres

import (
	"context"
	"errors"
	"fmt"

	"streamgate/internal/core/domain"
	"streamgate/pkg/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const selectColumns = `user_id, ingress_id, server_url, stream_key, is_live, created_at, updated_at`

// StreamRepository persists stream records in the streams table. Writes
// are single-statement point updates.
type StreamRepository struct {
	pool *pgxpool.Pool
}

func NewStreamRepository(pool *pgxpool.Pool) *StreamRepository {
	return &StreamRepository{pool: pool}
}

func (r *StreamRepository) Create(ctx context.Context, record *domain.StreamRecord) error {
	const q = `INSERT INTO streams (user_id, ingress_id, server_url, stream_key, is_live)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, string(record.UserID), record.IngressID, record.ServerURL, record.StreamKey, record.IsLive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrStreamExists
		}
		return fmt.Errorf("insert stream: %w", err)
	}
	return nil
}

func (r *StreamRepository) GetByUserID(ctx context.Context, userID domain.BroadcasterID) (*domain.StreamRecord, error) {
	const q = `SELECT ` + selectColumns + ` FROM streams WHERE user_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, string(userID)))
}

func (r *StreamRepository) GetByIngressID(ctx context.Context, ingressID string) (*domain.StreamRecord, error) {
	const q = `SELECT ` + selectColumns + ` FROM streams WHERE ingress_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, ingressID))
}

func (r *StreamRepository) UpdateIngress(ctx context.Context, userID domain.BroadcasterID, creds domain.Credentials) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "update_ingress", "streams")
	defer span.End()

	const q = `UPDATE streams SET ingress_id = $1, server_url = $2, stream_key = $3, updated_at = NOW() WHERE user_id = $4`
	tag, err := r.pool.Exec(ctx, q, creds.IngressID, creds.ServerURL, creds.StreamKey, string(userID))
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("update stream credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (r *StreamRepository) SetLiveByIngressID(ctx context.Context, ingressID string, live bool) (bool, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "set_live", "streams")
	defer span.End()

	const q = `UPDATE streams SET is_live = $1, updated_at = NOW() WHERE ingress_id = $2`
	tag, err := r.pool.Exec(ctx, q, live, ingressID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return false, fmt.Errorf("update live state: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *StreamRepository) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *StreamRepository) scanOne(row pgx.Row) (*domain.StreamRecord, error) {
	var (
		rec    domain.StreamRecord
		userID string
	)
	err := row.Scan(&userID, &rec.IngressID, &rec.ServerURL, &rec.StreamKey, &rec.IsLive, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select stream: %w", err)
	}
	rec.UserID = domain.BroadcasterID(userID)
	return &rec, nil
}
