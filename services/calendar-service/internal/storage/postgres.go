package storage

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/outbox"
)

//go:embed schema.sql
var Schema string

// calendarLockKey serialises every write that changes what is occupied.
const calendarLockKey int64 = 0x5107b00c

type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgres(pool *db.Pool, outboxRepo *outbox.Repository) *Postgres {
	return &Postgres{pool: pool, outbox: outboxRepo}
}

func lock(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, calendarLockKey)
	return err
}

func (p *Postgres) ReplaceBusy(ctx context.Context, users []model.UserBusy) error {
	evt, err := outbox.BusyIngested(users)
	if err != nil {
		return err
	}
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		if err := lock(ctx, tx); err != nil {
			return err
		}
		var rows [][]any
		for _, u := range users {
			if _, err := tx.Exec(ctx, `DELETE FROM busy_intervals WHERE user_id = $1`, u.ID); err != nil {
				return err
			}
			for _, iv := range u.Busy {
				rows = append(rows, []any{u.ID, iv.Start, iv.End})
			}
		}
		if len(rows) > 0 {
			if _, err := tx.CopyFrom(ctx,
				pgx.Identifier{"busy_intervals"},
				[]string{"user_id", "start_minute", "end_minute"},
				pgx.CopyFromRows(rows),
			); err != nil {
				return err
			}
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
}

func (p *Postgres) Occupied(ctx context.Context) ([]timeofday.Interval, error) {
	return queryIntervals(ctx, p.pool, occupiedSQL)
}

const occupiedSQL = `
	SELECT start_minute, end_minute FROM busy_intervals
	UNION ALL
	SELECT start_minute, end_minute FROM bookings
`

func (p *Postgres) Calendar(ctx context.Context, userID int64) (model.Calendar, error) {
	busy, err := queryIntervals(ctx, p.pool, `
		SELECT start_minute, end_minute FROM busy_intervals
		WHERE user_id = $1
		ORDER BY start_minute, end_minute
	`, userID)
	if err != nil {
		return model.Calendar{}, err
	}
	booked, err := queryIntervals(ctx, p.pool, `
		SELECT start_minute, end_minute FROM bookings
		ORDER BY created_at, start_minute
	`)
	if err != nil {
		return model.Calendar{}, err
	}
	return model.Calendar{Busy: busy, Booked: booked}, nil
}

func (p *Postgres) Book(ctx context.Context, b model.Booking, admit Admit) error {
	evt, err := outbox.SlotBooked(b)
	if err != nil {
		return err
	}
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		if err := lock(ctx, tx); err != nil {
			return err
		}
		occupied, err := queryIntervals(ctx, tx, occupiedSQL)
		if err != nil {
			return err
		}
		if err := admit(occupied); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, start_minute, end_minute, duration_minutes, request_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, b.ID, b.Slot.Start, b.Slot.End, b.Duration, b.RequestID, b.CreatedAt); err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryIntervals(ctx context.Context, q querier, sql string, args ...any) ([]timeofday.Interval, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (timeofday.Interval, error) {
		var iv timeofday.Interval
		err := row.Scan(&iv.Start, &iv.End)
		return iv, err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []timeofday.Interval{}
	}
	return out, nil
}
