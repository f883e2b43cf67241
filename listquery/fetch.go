package listquery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/subjects"
)

// Page is one page of list rows.
type Page struct {
	Rows        []map[string]any  `json:"rows"`
	Total       int               `json:"total"`
	Page        int               `json:"page"`
	PerPage     int               `json:"per_page"`
	HasMore     bool              `json:"has_more"`
	Diagnostics types.Diagnostics `json:"diagnostics"`
}

// Fetch counts the matching records and scans one page of rows. The record
// id is appended to the ordering so pages are deterministic. DATE fields and
// annotations are decoded into types.Date regardless of driver
// representation.
func (e *Engine) Fetch(ctx context.Context, q *Query, pagination types.Pagination) (Page, error) {
	if q == nil {
		return Page{}, fmt.Errorf("listquery: query required")
	}
	page, perPage := normalizePagination(pagination)

	total, err := q.sel.Count(ctx)
	if err != nil {
		return Page{}, err
	}

	rows := make([]map[string]any, 0, perPage)
	if total > 0 {
		sel := q.sel.Clone().
			OrderExpr("? ASC", q.subject.IDColumn()).
			Limit(perPage).
			Offset((page - 1) * perPage)
		if err := sel.Scan(ctx, &rows); err != nil {
			return Page{}, err
		}
	}
	for _, row := range rows {
		if err := e.decodeRow(q, row); err != nil {
			return Page{}, err
		}
	}
	return Page{
		Rows:        rows,
		Total:       total,
		Page:        page,
		PerPage:     perPage,
		HasMore:     page*perPage < total,
		Diagnostics: q.Diagnostics,
	}, nil
}

func (e *Engine) decodeRow(q *Query, row map[string]any) error {
	for name, dataType := range q.annotations {
		raw, ok := row[name]
		if !ok || raw == nil || dataType != types.DataTypeDate {
			continue
		}
		d, err := decodeDate(raw)
		if err != nil {
			return fmt.Errorf("listquery: decode %s: %w", name, err)
		}
		row[name] = d
	}
	for _, f := range q.subject.Fields() {
		raw, ok := row[f.Path]
		if !ok || raw == nil {
			continue
		}
		switch f.Type {
		case subjects.FieldDate:
			d, err := decodeDate(raw)
			if err != nil {
				return fmt.Errorf("listquery: decode %s: %w", f.Path, err)
			}
			row[f.Path] = d
		case subjects.FieldBool:
			row[f.Path] = decodeBool(raw)
		case subjects.FieldUUID:
			row[f.Path] = decodeUUID(raw)
		}
	}
	return nil
}

func decodeDate(raw any) (*types.Date, error) {
	if raw == nil {
		return nil, nil
	}
	var d types.Date
	if err := d.Scan(raw); err != nil {
		return nil, err
	}
	return &d, nil
}

func decodeBool(raw any) any {
	switch v := raw.(type) {
	case int64:
		return v != 0
	case []byte:
		return string(v) == "1" || string(v) == "t" || string(v) == "true"
	default:
		return raw
	}
}

func decodeUUID(raw any) any {
	switch v := raw.(type) {
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err == nil {
				return id.String()
			}
		}
		return string(v)
	case [16]byte:
		return uuid.UUID(v).String()
	default:
		return raw
	}
}

func normalizePagination(p types.Pagination) (int, int) {
	page := p.Page
	if page <= 0 {
		page = 1
	}
	perPage := p.PerPage
	if perPage <= 0 {
		perPage = types.DefaultItemsPerPage
	}
	if perPage > 200 {
		perPage = 200
	}
	return page, perPage
}
