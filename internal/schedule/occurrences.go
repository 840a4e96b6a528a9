package schedule

import (
	"context"
	"fmt"

	"agenda/pkg/model"
	"agenda/pkg/recurrence"
	"agenda/pkg/timespan"

	"github.com/google/uuid"
)

// source is an availability ready to expand.
type source struct {
	id   string
	rule *recurrence.Rule
	ref  recurrence.Reference
}

func (e *Engine) compile(availabilities []model.Availability) ([]source, error) {
	sources := make([]source, 0, len(availabilities))
	for i := range availabilities {
		a := &availabilities[i]
		rule, err := a.Rule()
		if err != nil {
			return nil, err
		}
		ref, err := a.Reference()
		if err != nil {
			return nil, fmt.Errorf("availability %s: %w", a.ID, err)
		}
		ref.MaxOccurrences = e.opts.MaxOccurrences
		sources = append(sources, source{id: a.ID, rule: rule, ref: ref})
	}
	return sources, nil
}

// Generate expands availabilities over window, clips every occurrence to
// it and merges what overlaps or touches. Each result names every
// availability that contributed to it.
func Generate(availabilities []model.Availability, window timespan.TimeSpan) ([]model.AvailabilityOccurrence, error) {
	e := &Engine{opts: Options{MaxOccurrences: recurrence.DefaultMaxOccurrences}}
	sources, err := e.compile(availabilities)
	if err != nil {
		return nil, err
	}

	var owner model.OwnerRef
	if len(availabilities) > 0 {
		owner = availabilities[0].Owner
	}
	merged, err := generate(sources, window)
	if err != nil {
		return nil, err
	}
	out := make([]model.AvailabilityOccurrence, 0, len(merged))
	for _, t := range merged {
		out = append(out, newOccurrence(owner, t))
	}
	return out, nil
}

func generate(sources []source, window timespan.TimeSpan) ([]tagged, error) {
	var spans []tagged
	for _, src := range sources {
		for span, err := range recurrence.Expand(src.rule, src.ref, window) {
			if err != nil {
				return nil, fmt.Errorf("availability %s: %w", src.id, err)
			}
			if c, ok := span.Intersect(window); ok {
				spans = append(spans, tagged{span: c, ids: []string{src.id}})
			}
		}
	}
	return mergeTagged(spans), nil
}

// rawSpans returns the unclipped occurrences touching probe.
func rawSpans(sources []source, probe timespan.TimeSpan) ([]timespan.TimeSpan, error) {
	var out []timespan.TimeSpan
	for _, src := range sources {
		for span, err := range recurrence.Expand(src.rule, src.ref, probe) {
			if err != nil {
				return nil, fmt.Errorf("availability %s: %w", src.id, err)
			}
			out = append(out, span)
		}
	}
	return out, nil
}

func newOccurrence(owner model.OwnerRef, t tagged) model.AvailabilityOccurrence {
	return model.AvailabilityOccurrence{
		ID:              uuid.NewString(),
		Owner:           owner,
		AvailabilityIDs: t.ids,
		Start:           t.span.Start.UTC(),
		End:             t.span.End.UTC(),
	}
}

func occurrenceKey(o *model.AvailabilityOccurrence) string {
	return tagged{span: o.Span(), ids: unionIDs(nil, o.AvailabilityIDs)}.key()
}

// reconcileOccurrences makes the stored occurrences in window equal to
// desired, leaving identical records alone.
func (e *Engine) reconcileOccurrences(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan, desired []tagged, result *RegenerationResult) error {
	stored, err := e.store.ListOccurrences(ctx, owner, window)
	if err != nil {
		return fmt.Errorf("failed to list occurrences: %w", err)
	}

	want := make(map[string]tagged, len(desired))
	for _, t := range desired {
		want[t.key()] = t
	}

	var deleteIDs []string
	for i := range stored {
		key := occurrenceKey(&stored[i])
		if _, ok := want[key]; ok {
			delete(want, key)
			continue
		}
		deleteIDs = append(deleteIDs, stored[i].ID)
	}

	var inserts []model.AvailabilityOccurrence
	for _, t := range desired {
		if _, ok := want[t.key()]; ok {
			inserts = append(inserts, newOccurrence(owner, t))
		}
	}

	if len(deleteIDs) > 0 {
		if err := e.store.DeleteOccurrences(ctx, deleteIDs); err != nil {
			return fmt.Errorf("failed to delete occurrences: %w", err)
		}
	}
	if len(inserts) > 0 {
		if err := e.store.InsertOccurrences(ctx, inserts); err != nil {
			return fmt.Errorf("failed to insert occurrences: %w", err)
		}
	}
	result.OccurrencesDeleted += len(deleteIDs)
	result.OccurrencesInserted += len(inserts)
	return nil
}
