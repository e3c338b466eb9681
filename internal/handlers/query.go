package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/service"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest(ErrInvalidID)
	}
	return id, nil
}

// querySort reads ?sort=field&order=desc. Unknown fields are ignored by the
// repositories and fall back to their default order.
func querySort(q url.Values) database.Sort {
	return database.Sort{Field: q.Get("sort"), Desc: q.Get("order") == "desc"}
}

func queryInt64(q url.Values, key string) (*int64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.BadRequestf("%s: %s", ErrInvalidQuery, key)
	}
	return &v, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.BadRequestf("%s: %s", ErrInvalidQuery, key)
	}
	return v, nil
}

func queryDate(q url.Values, key string) (*service.Date, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := service.ParseDate(raw)
	if err != nil {
		return nil, apperr.BadRequestf("%s: %s", ErrInvalidQuery, key)
	}
	return &d, nil
}
