package http

import (
	"net/http"
	"strconv"
	"time"

	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/timespan"

	"github.com/julienschmidt/httprouter"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractOwner reads the owner from the :owner_type and :owner_id route
// parameters.
func ExtractOwner(ps httprouter.Params) (model.OwnerRef, error) {
	ownerType, ownerID := ps.ByName("owner_type"), ps.ByName("owner_id")
	if ownerType == "" || ownerID == "" {
		return model.OwnerRef{}, apperrors.InvalidInput("owner type and id are required")
	}
	return model.OwnerRef{Type: ownerType, ID: ownerID}, nil
}

// ExtractTime parses an optional RFC3339 query parameter.
func ExtractTime(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " format, must be RFC3339")
	}
	t = t.UTC()
	return &t, nil
}

// ExtractWindow reads the required start and end query parameters as a
// window truncated to the second. Windows longer than maxWindow are
// rejected.
func ExtractWindow(r *http.Request, maxWindow time.Duration) (timespan.TimeSpan, error) {
	start, err := ExtractTime(r, "start")
	if err != nil {
		return timespan.TimeSpan{}, err
	}
	end, err := ExtractTime(r, "end")
	if err != nil {
		return timespan.TimeSpan{}, err
	}
	if start == nil || end == nil {
		return timespan.TimeSpan{}, apperrors.InvalidInput("both 'start' and 'end' query parameters are required")
	}

	window := timespan.TimeSpan{Start: start.Truncate(time.Second), End: end.Truncate(time.Second)}
	if !window.IsValid() {
		return timespan.TimeSpan{}, apperrors.InvalidInput("'end' must be after 'start'")
	}
	if maxWindow > 0 && window.Duration() > maxWindow {
		return timespan.TimeSpan{}, apperrors.InvalidInput("requested window is longer than " + maxWindow.String())
	}
	return window, nil
}
