// Package notiontest provides an in-memory journal database for tests.
package notiontest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/notion"
)

// Journal is an in-memory database that understands the subset of the query
// filter language used for duplicate lookups.
type Journal struct {
	mu     sync.Mutex
	schema model.SchemaDescriptor
	pages  []notion.Page
	nextID int

	// QueryErr, when set, fails every query.
	QueryErr error
	// DescribeErr, when set, fails every schema description.
	DescribeErr error
	// CreateErrs are returned by successive CreatePage calls before any succeed.
	CreateErrs []error

	Queries int
	Creates int
}

// New creates an empty journal with the given schema.
func New(schema model.SchemaDescriptor) *Journal {
	return &Journal{schema: schema}
}

// DefaultSchema is the standard trading journal layout.
func DefaultSchema() model.SchemaDescriptor {
	return model.SchemaDescriptor{
		DatabaseID: "db1",
		Title:      "Trading Journal",
		Properties: map[string]model.PropertyKind{
			"Name":         model.KindTitle,
			"Overall":      model.KindSelect,
			"Pair":         model.KindSelect,
			"Type":         model.KindSelect,
			"Open":         model.KindDate,
			"Close":        model.KindDate,
			"Volume":       model.KindNumber,
			"Open Price":   model.KindNumber,
			"Close Price":  model.KindNumber,
			"Profit":       model.KindNumber,
			"Commission":   model.KindNumber,
			"SWAP":         model.KindNumber,
			"Net Profit":   model.KindFormula,
			"SL":           model.KindNumber,
			"TP":           model.KindNumber,
			"Ticket ID":    model.KindNumber,
			"Position ID":  model.KindNumber,
			"Order ID":     model.KindNumber,
			"Magic Number": model.KindNumber,
			"Comment":      model.KindRichText,
			"Close Reason": model.KindRichText,
		},
	}
}

// Seed stores an existing entry for account and ticket.
func (j *Journal) Seed(account string, ticket int64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := float64(ticket)
	j.addLocked(map[string]notion.PropertyValue{
		"Ticket ID": {Type: "number", Number: &n},
		"Overall":   {Type: "select", Select: &notion.SelectOption{Name: account}},
	})
}

// Tickets returns the stored tickets for an account, sorted.
func (j *Journal) Tickets(account string) []int64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []int64
	for _, p := range j.pages {
		if sel := p.Properties["Overall"].Select; sel == nil || sel.Name != account {
			continue
		}
		if n, ok := p.Number("Ticket ID"); ok {
			out = append(out, int64(n))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Len returns the number of stored pages.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pages)
}

// DescribeSchema returns the journal's schema.
func (j *Journal) DescribeSchema(ctx context.Context, databaseID string) (model.SchemaDescriptor, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.DescribeErr != nil {
		return model.SchemaDescriptor{}, j.DescribeErr
	}
	return j.schema, nil
}

// QueryPages returns pages matching filter.
func (j *Journal) QueryPages(ctx context.Context, databaseID string, filter *notion.Filter) ([]notion.Page, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Queries++
	if j.QueryErr != nil {
		return nil, j.QueryErr
	}

	var out []notion.Page
	for _, p := range j.pages {
		if filter == nil || matches(p, *filter) {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreatePage stores a page built from the write set.
func (j *Journal) CreatePage(ctx context.Context, databaseID string, set model.PropertyWriteSet) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Creates++
	if len(j.CreateErrs) > 0 {
		err := j.CreateErrs[0]
		j.CreateErrs = j.CreateErrs[1:]
		return "", err
	}

	props := make(map[string]notion.PropertyValue, len(set.Writes))
	for _, w := range set.Writes {
		v := notion.PropertyValue{Type: string(w.Kind)}
		switch w.Kind {
		case model.KindNumber:
			v.Number = w.Number
		case model.KindSelect:
			v.Select = &notion.SelectOption{Name: w.Text}
		case model.KindTitle:
			v.Title = []notion.RichText{{PlainText: w.Text}}
		case model.KindRichText:
			v.RichText = []notion.RichText{{PlainText: w.Text}}
		}
		props[w.Name] = v
	}
	return j.addLocked(props), nil
}

func (j *Journal) addLocked(props map[string]notion.PropertyValue) string {
	j.nextID++
	id := fmt.Sprintf("page-%d", j.nextID)
	j.pages = append(j.pages, notion.Page{Object: "page", ID: id, Properties: props})
	return id
}

func matches(p notion.Page, f notion.Filter) bool {
	switch {
	case len(f.And) > 0:
		for _, sub := range f.And {
			if !matches(p, sub) {
				return false
			}
		}
		return true
	case len(f.Or) > 0:
		for _, sub := range f.Or {
			if matches(p, sub) {
				return true
			}
		}
		return false
	case f.Number != nil:
		n, ok := p.Number(f.Property)
		return ok && n == f.Number.Equals
	case f.Select != nil:
		sel := p.Properties[f.Property].Select
		return sel != nil && sel.Name == f.Select.Equals
	case f.RichText != nil:
		rt := p.Properties[f.Property].RichText
		return len(rt) > 0 && rt[0].PlainText == f.RichText.Equals
	}
	return true
}
