// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/capstone/internal/app/system/apperr"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit is the page size used when the caller does not ask for one.
const DefaultLimit = 50

// MaxLimit caps the page size a caller may request.
const MaxLimit = 200

// Request is a keyset page request: at most one of Before and After is
// honoured, Before taking precedence.
type Request struct {
	Before string
	After  string
	Limit  int
}

// ParseRequest reads ?before=, ?after= and ?limit= from r.
func ParseRequest(r *http.Request) (Request, error) {
	req := Request{
		Before: query.Get(r, "before"),
		After:  query.Get(r, "after"),
		Limit:  DefaultLimit,
	}
	if s := query.Get(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxLimit {
			return Request{}, apperr.Validation("limit must be between 1 and %d", MaxLimit)
		}
		req.Limit = n
	}
	return req, nil
}

func (r Request) limit() int {
	if r.Limit < 1 || r.Limit > MaxLimit {
		return DefaultLimit
	}
	return r.Limit
}

// Direction indicates the pagination direction.
type Direction int

const (
	Forward  Direction = iota // ascending, "gt" cursor
	Backward                  // descending, "lt" cursor
)

// Keyset is a decoded Request ready to apply to a Find.
type Keyset struct {
	Direction Direction
	SortOrder int
	Cursor    *wafflemongo.Cursor
	Limit     int
}

// Keyset decodes the request's cursor. A cursor that does not decode is a
// validation error.
func (r Request) Keyset() (Keyset, error) {
	k := Keyset{Direction: Forward, SortOrder: 1, Limit: r.limit()}
	raw := r.After
	if r.Before != "" {
		k.Direction = Backward
		k.SortOrder = -1
		raw = r.Before
	}
	if raw == "" {
		return k, nil
	}
	c, ok := wafflemongo.DecodeCursor(raw)
	if !ok {
		return Keyset{}, apperr.Validation("malformed page cursor")
	}
	k.Cursor = &c
	return k, nil
}

// ApplyToFind sorts on sortField then _id and fetches one extra row so
// Build can tell whether another page exists.
func (k Keyset) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: k.SortOrder},
		{Key: "_id", Value: k.SortOrder},
	}).SetLimit(int64(k.Limit + 1))
}

// Window returns the cursor condition to merge into a filter, or nil on
// the first page.
func (k Keyset) Window(sortField string) bson.M {
	if k.Cursor == nil {
		return nil
	}
	dir := "gt"
	if k.Direction == Backward {
		dir = "lt"
	}
	return wafflemongo.KeysetWindow(sortField, dir, k.Cursor.CI, k.Cursor.ID)
}

// Page is one slice of a keyset-paginated list.
type Page[T any] struct {
	Items   []T    `json:"items"`
	HasPrev bool   `json:"has_prev"`
	HasNext bool   `json:"has_next"`
	Prev    string `json:"prev,omitempty"`
	Next    string `json:"next,omitempty"`
}

// Build trims the look-ahead row, restores ascending order when paging
// backwards, and encodes the cursors for the neighbouring pages.
func Build[T any](rows []T, req Request, k Keyset, keyFn func(T) string, idFn func(T) primitive.ObjectID) Page[T] {
	var p Page[T]
	if k.Direction == Backward {
		if len(rows) > k.Limit {
			rows = rows[:k.Limit]
			p.HasPrev = true
		}
		reverse(rows)
		p.HasNext = true
	} else {
		if len(rows) > k.Limit {
			rows = rows[:k.Limit]
			p.HasNext = true
		}
		p.HasPrev = req.After != ""
	}
	if rows == nil {
		rows = []T{}
	}
	p.Items = rows

	if len(rows) > 0 {
		first, last := rows[0], rows[len(rows)-1]
		if p.HasPrev {
			p.Prev = wafflemongo.EncodeCursor(keyFn(first), idFn(first))
		}
		if p.HasNext {
			p.Next = wafflemongo.EncodeCursor(keyFn(last), idFn(last))
		}
	}
	return p
}

func reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
