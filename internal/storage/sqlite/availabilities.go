package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	availabilitieserrors "agenda/internal/availabilities/errors"
	"agenda/internal/availabilities/repository"
	"agenda/pkg/model"

	"github.com/google/uuid"
)

const availabilityColumns = `id, owner_type, owner_id, start_date, start_time, end_time, recurrence, timezone, recur_until, created_at, updated_at`

type availabilityRepo struct {
	s *Store
}

// Availabilities is the availability repository backed by s.
func (s *Store) Availabilities() repository.AvailabilityRepository {
	return &availabilityRepo{s: s}
}

// ListAvailabilities returns every availability of owner.
func (s *Store) ListAvailabilities(ctx context.Context, owner model.OwnerRef) ([]model.Availability, error) {
	return (&availabilityRepo{s: s}).ListAvailabilities(ctx, owner)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAvailability(row rowScanner) (*model.Availability, error) {
	var a model.Availability
	var created, updated int64
	if err := row.Scan(&a.ID, &a.Owner.Type, &a.Owner.ID, &a.StartDate, &a.StartTime, &a.EndTime,
		&a.Recurrence, &a.TimeZone, &a.RecurUntil, &created, &updated); err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

func validAvailabilityID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", availabilitieserrors.ErrInvalidID, id)
	}
	return nil
}

func (r *availabilityRepo) Create(ctx context.Context, a *model.Availability) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = now()
	a.UpdatedAt = a.CreatedAt

	_, err := r.s.exec(ctx,
		`INSERT INTO availabilities (`+availabilityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Owner.Type, a.Owner.ID, a.StartDate, a.StartTime, a.EndTime,
		a.Recurrence, a.TimeZone, a.RecurUntil, toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create availability: %w", err)
	}
	return nil
}

func (r *availabilityRepo) FindByID(ctx context.Context, id string) (*model.Availability, error) {
	if err := validAvailabilityID(id); err != nil {
		return nil, err
	}
	row := r.s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+availabilityColumns+` FROM availabilities WHERE id = ?`, id)
	a, err := scanAvailability(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, availabilitieserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability: %w", err)
	}
	return a, nil
}

func (r *availabilityRepo) FindByOwner(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, error) {
	rows, err := r.s.conn(ctx).QueryContext(ctx,
		`SELECT `+availabilityColumns+` FROM availabilities
		 WHERE owner_type = ? AND owner_id = ?
		 ORDER BY start_date, start_time, id
		 LIMIT ? OFFSET ?`,
		owner.Type, owner.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find availabilities: %w", err)
	}
	defer rows.Close()

	var out []*model.Availability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *availabilityRepo) CountByOwner(ctx context.Context, owner model.OwnerRef) (int64, error) {
	var n int64
	err := r.s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM availabilities WHERE owner_type = ? AND owner_id = ?`,
		ownerArgs(owner)...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count availabilities: %w", err)
	}
	return n, nil
}

func (r *availabilityRepo) ListAvailabilities(ctx context.Context, owner model.OwnerRef) ([]model.Availability, error) {
	rows, err := r.s.conn(ctx).QueryContext(ctx,
		`SELECT `+availabilityColumns+` FROM availabilities
		 WHERE owner_type = ? AND owner_id = ? ORDER BY id`,
		ownerArgs(owner)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}
	defer rows.Close()

	var out []model.Availability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *availabilityRepo) Update(ctx context.Context, a *model.Availability) error {
	if err := validAvailabilityID(a.ID); err != nil {
		return err
	}
	a.UpdatedAt = now()
	res, err := r.s.exec(ctx,
		`UPDATE availabilities
		 SET start_date = ?, start_time = ?, end_time = ?, recurrence = ?, timezone = ?, recur_until = ?, updated_at = ?
		 WHERE id = ?`,
		a.StartDate, a.StartTime, a.EndTime, a.Recurrence, a.TimeZone, a.RecurUntil, toMillis(a.UpdatedAt), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	return affectedOrNotFound(res, availabilitieserrors.ErrNotFound)
}

func (r *availabilityRepo) Delete(ctx context.Context, id string) error {
	if err := validAvailabilityID(id); err != nil {
		return err
	}
	res, err := r.s.exec(ctx, `DELETE FROM availabilities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	return affectedOrNotFound(res, availabilitieserrors.ErrNotFound)
}

func affectedOrNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
