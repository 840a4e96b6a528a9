package sqlite

import (
	"context"
	"fmt"
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

// SQLite caps bound parameters per statement; deletes by ID are chunked.
const deleteChunk = 500

func (s *Store) ListOccurrences(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.AvailabilityOccurrence, error) {
	return s.queryOccurrences(ctx, owner,
		`SELECT id, availability_ids, start_at, end_at FROM occurrences
		 WHERE owner_type = ? AND owner_id = ? AND start_at <= ? AND end_at >= ?
		 ORDER BY start_at, id`,
		owner.Type, owner.ID, toMillis(span.End), toMillis(span.Start))
}

func (s *Store) ListOccurrencesByAvailability(ctx context.Context, owner model.OwnerRef, availabilityID string) ([]model.AvailabilityOccurrence, error) {
	return s.queryOccurrences(ctx, owner,
		`SELECT id, availability_ids, start_at, end_at FROM occurrences
		 WHERE owner_type = ? AND owner_id = ?
		   AND EXISTS (SELECT 1 FROM json_each(occurrences.availability_ids) WHERE json_each.value = ?)
		 ORDER BY start_at, id`,
		owner.Type, owner.ID, availabilityID)
}

func (s *Store) queryOccurrences(ctx context.Context, owner model.OwnerRef, query string, args ...any) ([]model.AvailabilityOccurrence, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	defer rows.Close()

	var out []model.AvailabilityOccurrence
	for rows.Next() {
		o := model.AvailabilityOccurrence{Owner: owner}
		var ids string
		var start, end int64
		if err := rows.Scan(&o.ID, &ids, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		if o.AvailabilityIDs, err = decodeIDs(ids); err != nil {
			return nil, err
		}
		o.Start, o.End = fromMillis(start), fromMillis(end)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) InsertOccurrences(ctx context.Context, occurrences []model.AvailabilityOccurrence) error {
	for _, o := range occurrences {
		ids, err := encodeIDs(o.AvailabilityIDs)
		if err != nil {
			return err
		}
		if _, err := s.exec(ctx,
			`INSERT INTO occurrences (id, owner_type, owner_id, availability_ids, start_at, end_at) VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, o.Owner.Type, o.Owner.ID, ids, toMillis(o.Start), toMillis(o.End)); err != nil {
			return fmt.Errorf("failed to insert occurrence: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteOccurrences(ctx context.Context, ids []string) error {
	if err := s.deleteByIDs(ctx, "occurrences", ids); err != nil {
		return fmt.Errorf("failed to delete occurrences: %w", err)
	}
	return nil
}

func (s *Store) ListTimeSlots(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.TimeSlot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, start_at, end_at, busy, padding, booking_ids FROM time_slots
		 WHERE owner_type = ? AND owner_id = ? AND start_at <= ? AND end_at >= ?
		 ORDER BY start_at, id`,
		owner.Type, owner.ID, toMillis(span.End), toMillis(span.Start))
	if err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	defer rows.Close()

	var out []model.TimeSlot
	for rows.Next() {
		slot := model.TimeSlot{Owner: owner}
		var ids string
		var start, end int64
		if err := rows.Scan(&slot.ID, &start, &end, &slot.Busy, &slot.Padding, &ids); err != nil {
			return nil, fmt.Errorf("failed to scan time slot: %w", err)
		}
		if slot.BookingIDs, err = decodeIDs(ids); err != nil {
			return nil, err
		}
		slot.Start, slot.End = fromMillis(start), fromMillis(end)
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (s *Store) InsertTimeSlots(ctx context.Context, slots []model.TimeSlot) error {
	for _, slot := range slots {
		ids, err := encodeIDs(slot.BookingIDs)
		if err != nil {
			return err
		}
		if _, err := s.exec(ctx,
			`INSERT INTO time_slots (id, owner_type, owner_id, start_at, end_at, busy, padding, booking_ids) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			slot.ID, slot.Owner.Type, slot.Owner.ID, toMillis(slot.Start), toMillis(slot.End), slot.Busy, slot.Padding, ids); err != nil {
			return fmt.Errorf("failed to insert time slot: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteTimeSlots(ctx context.Context, ids []string) error {
	if err := s.deleteByIDs(ctx, "time_slots", ids); err != nil {
		return fmt.Errorf("failed to delete time slots: %w", err)
	}
	return nil
}

func (s *Store) deleteByIDs(ctx context.Context, table string, ids []string) error {
	for start := 0; start < len(ids); start += deleteChunk {
		chunk := ids[start:min(start+deleteChunk, len(ids))]
		if _, err := s.exec(ctx,
			`DELETE FROM `+table+` WHERE id IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListOwners(ctx context.Context) ([]model.OwnerRef, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT owner_type, owner_id FROM availabilities
		 UNION SELECT owner_type, owner_id FROM time_slots
		 ORDER BY 1, 2`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var out []model.OwnerRef
	for rows.Next() {
		var o model.OwnerRef
		if err := rows.Scan(&o.Type, &o.ID); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) DeleteGenerated(ctx context.Context) (int64, error) {
	var total int64
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		for _, query := range []string{
			`DELETE FROM occurrences`,
			`DELETE FROM time_slots WHERE busy = 0`,
		} {
			res, err := s.exec(ctx, query)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete generated records: %w", err)
	}
	return total, nil
}

func (s *Store) DeleteFreeSlotsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM time_slots WHERE busy = 0 AND end_at <= ?`, toMillis(t))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old free slots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
