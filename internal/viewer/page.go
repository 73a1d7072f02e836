package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/domain"
)

// Page is one fetched page in uniform shape.
type Page struct {
	Rows       []domain.Record
	Total      int
	Pagination domain.PaginationInfo
	// Fields is set when the response carried explicit field metadata.
	Fields []domain.FieldInfo
}

// Normalize recovers a Page from any of the payload shapes the backend uses:
// a bare array, {data, pagination}, {fields, data, pagination},
// {<listKey>: [...], pagination}, or a single object (one row).
func Normalize(raw json.RawMessage, listKey string, q domain.Query) (Page, error) {
	var page Page
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && string(trimmed) != "null" {
		v, err := domain.DecodeValue(trimmed)
		if err != nil {
			return Page{}, fmt.Errorf("%w: %v", api.ErrShape, err)
		}
		if page, err = normalizeValue(v, listKey); err != nil {
			return Page{}, err
		}
	}

	p := page.Pagination
	if p.Page == 0 {
		p.Page = q.Page
	}
	if p.Limit == 0 {
		p.Limit = q.Limit
	}
	if p.Total == 0 {
		p.Total = page.Total
	}
	if p.Total == 0 {
		p.Total = len(page.Rows)
	}
	page.Pagination = p.Normalize()
	page.Total = page.Pagination.Total
	return page, nil
}

func normalizeValue(v domain.Value, listKey string) (Page, error) {
	switch v.Kind {
	case domain.KindNull:
		return Page{}, nil
	case domain.KindArray:
		rows, err := recordsOf(v.Array)
		return Page{Rows: rows}, err
	case domain.KindObject:
	default:
		return Page{}, fmt.Errorf("%w: expected rows, got a scalar", api.ErrShape)
	}

	obj := v.Object
	var page Page
	found := false
	for _, key := range []string{"data", listKey, "items", "results"} {
		if key == "" {
			continue
		}
		inner, ok := obj.Get(key)
		if !ok {
			continue
		}
		switch inner.Kind {
		case domain.KindArray:
			rows, err := recordsOf(inner.Array)
			if err != nil {
				return Page{}, err
			}
			page.Rows = rows
		case domain.KindObject:
			// {data: {<listKey>: [...], pagination}} and friends.
			nested, err := normalizeValue(inner, listKey)
			if err != nil {
				return Page{}, err
			}
			page = nested
		case domain.KindNull:
		default:
			return Page{}, fmt.Errorf("%w: %q is not a list", api.ErrShape, key)
		}
		found = true
		break
	}
	if !found {
		return Page{Rows: []domain.Record{obj}}, nil
	}

	if pv, ok := obj.Get("pagination"); ok && pv.Kind == domain.KindObject {
		var p domain.PaginationInfo
		if err := remarshal(pv, &p); err != nil {
			return Page{}, fmt.Errorf("%w: pagination: %v", api.ErrShape, err)
		}
		page.Pagination = p
	}
	for _, key := range []string{"total", "count"} {
		if tv, ok := obj.Get(key); ok && tv.Kind == domain.KindNumber && page.Total == 0 {
			if n, err := tv.Number.Int64(); err == nil {
				page.Total = int(n)
			}
		}
	}
	if fv, ok := obj.Get("fields"); ok && fv.Kind == domain.KindArray {
		fields, err := fieldsOf(fv.Array)
		if err != nil {
			return Page{}, err
		}
		page.Fields = fields
	}
	return page, nil
}

func recordsOf(items []domain.Value) ([]domain.Record, error) {
	rows := make([]domain.Record, 0, len(items))
	for i, item := range items {
		if item.Kind != domain.KindObject {
			return nil, fmt.Errorf("%w: row %d is not an object", api.ErrShape, i)
		}
		rows = append(rows, item.Object)
	}
	return rows, nil
}

// fieldsOf accepts either ["name", ...] or [{name, type, ...}, ...].
func fieldsOf(items []domain.Value) ([]domain.FieldInfo, error) {
	fields := make([]domain.FieldInfo, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case domain.KindString:
			fields = append(fields, domain.FieldInfo{Name: item.Str})
		case domain.KindObject:
			var f domain.FieldInfo
			if err := remarshal(item, &f); err != nil {
				return nil, fmt.Errorf("%w: field: %v", api.ErrShape, err)
			}
			fields = append(fields, f)
		default:
			return nil, fmt.Errorf("%w: unexpected field entry", api.ErrShape)
		}
	}
	return fields, nil
}

func remarshal(v domain.Value, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
