package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bookingserrors "agenda/internal/bookings/errors"
	"agenda/internal/bookings/repository"
	"agenda/pkg/model"
	"agenda/pkg/timespan"

	"github.com/google/uuid"
)

const bookingColumns = `id, owner_type, owner_id, label, state, requested_times, confirmed_time, duration_min, padding_min, allow_overlap, created_at, updated_at`

type bookingRepo struct {
	s *Store
}

// Bookings is the booking repository backed by s.
func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepo{s: s}
}

func validBookingID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return nil
}

func encodeTimes(times []time.Time) (string, int64, error) {
	ms := make([]int64, len(times))
	var last int64
	for i, t := range times {
		ms[i] = toMillis(t)
		if i == 0 || ms[i] > last {
			last = ms[i]
		}
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode requested times: %w", err)
	}
	return string(data), last, nil
}

func decodeTimes(raw string) ([]time.Time, error) {
	var ms []int64
	if err := json.Unmarshal([]byte(raw), &ms); err != nil {
		return nil, fmt.Errorf("failed to decode requested times: %w", err)
	}
	times := make([]time.Time, len(ms))
	for i, v := range ms {
		times[i] = fromMillis(v)
	}
	return times, nil
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var state, requested string
	var confirmed, padding sql.NullInt64
	var allowOverlap bool
	var created, updated int64
	if err := row.Scan(&b.ID, &b.Owner.Type, &b.Owner.ID, &b.Label, &state, &requested,
		&confirmed, &b.DurationMin, &padding, &allowOverlap, &created, &updated); err != nil {
		return nil, err
	}
	times, err := decodeTimes(requested)
	if err != nil {
		return nil, err
	}
	b.State = model.BookingState(state)
	b.RequestedTimes = times
	if confirmed.Valid {
		t := fromMillis(confirmed.Int64)
		b.ConfirmedTime = &t
	}
	if padding.Valid {
		p := int(padding.Int64)
		b.PaddingMin = &p
	}
	b.AllowOverlap = allowOverlap
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return &b, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func (r *bookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = now()
	b.UpdatedAt = b.CreatedAt

	requested, last, err := encodeTimes(b.RequestedTimes)
	if err != nil {
		return err
	}
	_, err = r.s.exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`, last_requested) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Owner.Type, b.Owner.ID, b.Label, string(b.State), requested,
		nullMillis(b.ConfirmedTime), b.DurationMin, nullInt(b.PaddingMin), b.AllowOverlap,
		toMillis(b.CreatedAt), toMillis(b.UpdatedAt), last,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := validBookingID(id); err != nil {
		return nil, err
	}
	row := r.s.conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return b, nil
}

func searchClause(f repository.Filter) (string, []any) {
	where := []string{"owner_type = ?", "owner_id = ?"}
	args := ownerArgs(f.Owner)
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(f.State))
	}
	if f.From != nil || f.To != nil {
		var cond []string
		if f.From != nil {
			cond = append(cond, "value >= ?")
			args = append(args, toMillis(*f.From))
		}
		if f.To != nil {
			cond = append(cond, "value < ?")
			args = append(args, toMillis(*f.To))
		}
		where = append(where, "EXISTS (SELECT 1 FROM json_each(bookings.requested_times) WHERE "+strings.Join(cond, " AND ")+")")
	}
	return strings.Join(where, " AND "), args
}

func (r *bookingRepo) query(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *bookingRepo) Find(ctx context.Context, f repository.Filter, limit int, offset int64) ([]*model.Booking, error) {
	where, args := searchClause(f)
	args = append(args, limit, offset)
	bookings, err := r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+where+` ORDER BY created_at, id LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepo) Count(ctx context.Context, f repository.Filter) (int64, error) {
	where, args := searchClause(f)
	var n int64
	if err := r.s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

func (r *bookingRepo) Update(ctx context.Context, b *model.Booking) error {
	if err := validBookingID(b.ID); err != nil {
		return err
	}
	b.UpdatedAt = now()
	requested, last, err := encodeTimes(b.RequestedTimes)
	if err != nil {
		return err
	}
	res, err := r.s.exec(ctx,
		`UPDATE bookings
		 SET label = ?, state = ?, requested_times = ?, last_requested = ?, confirmed_time = ?,
		     duration_min = ?, padding_min = ?, allow_overlap = ?, updated_at = ?
		 WHERE id = ?`,
		b.Label, string(b.State), requested, last, nullMillis(b.ConfirmedTime),
		b.DurationMin, nullInt(b.PaddingMin), b.AllowOverlap, toMillis(b.UpdatedAt), b.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return affectedOrNotFound(res, bookingserrors.ErrNotFound)
}

func (r *bookingRepo) Delete(ctx context.Context, id string) error {
	if err := validBookingID(id); err != nil {
		return err
	}
	res, err := r.s.exec(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return affectedOrNotFound(res, bookingserrors.ErrNotFound)
}

func (r *bookingRepo) FindReserved(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]*model.Booking, error) {
	states := repository.ReservedStates()
	args := ownerArgs(owner)
	for _, st := range states {
		args = append(args, string(st))
	}
	args = append(args, toMillis(span.Start.Add(-model.MaxDurationMin*time.Minute)), toMillis(span.End))

	bookings, err := r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE owner_type = ? AND owner_id = ? AND state IN (`+placeholders(len(states))+`)
		   AND confirmed_time >= ? AND confirmed_time <= ?
		 ORDER BY confirmed_time, id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find reserved bookings: %w", err)
	}
	return repository.Touching(bookings, span), nil
}

func (r *bookingRepo) FindPendingBefore(ctx context.Context, t time.Time, limit int) ([]*model.Booking, error) {
	bookings, err := r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE state = ? AND last_requested <= ?
		 ORDER BY created_at, id LIMIT ?`,
		string(model.BookingPending), toMillis(t), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending bookings: %w", err)
	}
	return bookings, nil
}
