package notion

import "encoding/json"

// User from GET /users/me
type User struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"` // "bot" for integrations
	Bot    *struct {
		WorkspaceName string `json:"workspace_name"`
	} `json:"bot,omitempty"`
}

// RichText is a Notion rich text item. Only plain text is used.
type RichText struct {
	Type      string    `json:"type,omitempty"`
	Text      *TextBody `json:"text,omitempty"`
	PlainText string    `json:"plain_text,omitempty"`
}

// TextBody is the content of a text rich text item.
type TextBody struct {
	Content string `json:"content"`
}

// DatabaseProperty is one column definition.
type DatabaseProperty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Database from GET /databases/{id}
type Database struct {
	Object     string                      `json:"object"`
	ID         string                      `json:"id"`
	Title      []RichText                  `json:"title"`
	Properties map[string]DatabaseProperty `json:"properties"`
}

// SelectOption is a select or multi-select value.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is a date property value.
type DateValue struct {
	Start string `json:"start"`
}

// PropertyValue is a property as returned on a page. Only the fields needed to
// read back identity values are decoded.
type PropertyValue struct {
	Type     string        `json:"type"`
	Number   *float64      `json:"number,omitempty"`
	Title    []RichText    `json:"title,omitempty"`
	RichText []RichText    `json:"rich_text,omitempty"`
	Select   *SelectOption `json:"select,omitempty"`
	Date     *DateValue    `json:"date,omitempty"`
}

// Page is a database row.
type Page struct {
	Object     string                   `json:"object"`
	ID         string                   `json:"id"`
	URL        string                   `json:"url,omitempty"`
	Properties map[string]PropertyValue `json:"properties"`
}

// Number returns the value of a number property.
func (p Page) Number(name string) (float64, bool) {
	v, ok := p.Properties[name]
	if !ok || v.Number == nil {
		return 0, false
	}
	return *v.Number, true
}

// QueryResponse from POST /databases/{id}/query
type QueryResponse struct {
	Object     string `json:"object"`
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

type queryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}

type createPageRequest struct {
	Parent     parent                     `json:"parent"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

// Filter is a database query filter. Either a single property condition or a
// compound and/or of nested filters.
type Filter struct {
	Property string        `json:"property,omitempty"`
	Number   *NumberFilter `json:"number,omitempty"`
	Select   *EqualsFilter `json:"select,omitempty"`
	RichText *EqualsFilter `json:"rich_text,omitempty"`
	And      []Filter      `json:"and,omitempty"`
	Or       []Filter      `json:"or,omitempty"`
}

// NumberFilter matches a number property.
type NumberFilter struct {
	Equals float64 `json:"equals"`
}

// EqualsFilter matches a select or text property.
type EqualsFilter struct {
	Equals string `json:"equals"`
}

// NumberEquals matches pages whose number property equals n.
func NumberEquals(property string, n float64) Filter {
	return Filter{Property: property, Number: &NumberFilter{Equals: n}}
}

// SelectEquals matches pages whose select property equals v.
func SelectEquals(property, v string) Filter {
	return Filter{Property: property, Select: &EqualsFilter{Equals: v}}
}

// RichTextEquals matches pages whose text property equals v.
func RichTextEquals(property, v string) Filter {
	return Filter{Property: property, RichText: &EqualsFilter{Equals: v}}
}

// And combines filters. A single filter is returned as is.
func And(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return Filter{And: filters}
}

// Or matches any of the filters. A single filter is returned as is.
func Or(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return Filter{Or: filters}
}
