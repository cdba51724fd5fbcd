package model

import (
	"sort"
	"time"
)

// PropertyKind is the type of a property as defined on the target database.
type PropertyKind string

const (
	KindTitle          PropertyKind = "title"
	KindRichText       PropertyKind = "rich_text"
	KindNumber         PropertyKind = "number"
	KindSelect         PropertyKind = "select"
	KindMultiSelect    PropertyKind = "multi_select"
	KindDate           PropertyKind = "date"
	KindCheckbox       PropertyKind = "checkbox"
	KindURL            PropertyKind = "url"
	KindFormula        PropertyKind = "formula"
	KindRollup         PropertyKind = "rollup"
	KindCreatedTime    PropertyKind = "created_time"
	KindLastEditedTime PropertyKind = "last_edited_time"
	KindUniqueID       PropertyKind = "unique_id"
	KindOther          PropertyKind = "other"
)

// IsReadOnly reports whether the store computes this property itself.
func (k PropertyKind) IsReadOnly() bool {
	switch k {
	case KindFormula, KindRollup, KindCreatedTime, KindLastEditedTime, KindUniqueID:
		return true
	}
	return false
}

// IsText reports whether the kind accepts a plain string value.
func (k PropertyKind) IsText() bool {
	switch k {
	case KindTitle, KindRichText, KindSelect, KindMultiSelect, KindURL:
		return true
	}
	return false
}

// SchemaDescriptor is the set of properties actually defined on the target database.
type SchemaDescriptor struct {
	DatabaseID string
	Title      string
	Properties map[string]PropertyKind
}

// Kind returns the kind of a property and whether it exists.
func (s SchemaDescriptor) Kind(name string) (PropertyKind, bool) {
	k, ok := s.Properties[name]
	return k, ok
}

// TitleProperties returns the names of all title-kind properties, sorted.
func (s SchemaDescriptor) TitleProperties() []string {
	var names []string
	for name, kind := range s.Properties {
		if kind == KindTitle {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Names returns all property names, sorted.
func (s SchemaDescriptor) Names() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertyWrite is a single typed property value. Which value field is used
// depends on Kind:
//   - title, rich_text, select, multi_select, url: Text
//   - number: Number (nil clears the value)
//   - date: Date
//   - checkbox: Checked
type PropertyWrite struct {
	Name    string
	Kind    PropertyKind
	Text    string
	Number  *float64
	Date    *time.Time
	Checked bool
}

// PropertyWriteSet is everything written for one trade.
type PropertyWriteSet struct {
	TicketID int64
	Account  string
	Title    string
	Writes   []PropertyWrite // Sorted by Name
}

// Get returns the write for a property name.
func (s PropertyWriteSet) Get(name string) (PropertyWrite, bool) {
	for _, w := range s.Writes {
		if w.Name == name {
			return w, true
		}
	}
	return PropertyWrite{}, false
}
