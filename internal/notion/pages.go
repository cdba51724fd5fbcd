package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rickgao/tradesync/internal/model"
)

// maxTextLength is Notion's limit for a single rich text item.
const maxTextLength = 2000

// CreatePage creates one database row from a property write set and returns
// the new page ID. It makes exactly one request: a throttled response is a
// RateLimitError carrying the APIError (and its RetryAfter), any other failure
// is a WriteError.
func (c *Client) CreatePage(ctx context.Context, databaseID string, set model.PropertyWriteSet) (string, error) {
	props, err := EncodeProperties(set.Writes)
	if err != nil {
		return "", &model.Error{Kind: model.KindWrite, Op: "create page", TicketID: set.TicketID, Err: err}
	}

	data, err := json.Marshal(createPageRequest{
		Parent:     parent{DatabaseID: databaseID},
		Properties: props,
	})
	if err != nil {
		return "", &model.Error{Kind: model.KindWrite, Op: "create page", TicketID: set.TicketID, Err: err}
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/pages", data)
	if err != nil {
		kind := model.KindWrite
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsRateLimited() {
			kind = model.KindRateLimit
		}
		return "", &model.Error{Kind: kind, Op: "create page", TicketID: set.TicketID, Err: err}
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return "", &model.Error{Kind: model.KindWrite, Op: "create page", TicketID: set.TicketID,
			Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	return page.ID, nil
}

// EncodeProperties converts typed writes into Notion property values.
func EncodeProperties(writes []model.PropertyWrite) (map[string]json.RawMessage, error) {
	props := make(map[string]json.RawMessage, len(writes))
	for _, w := range writes {
		v, err := encodeProperty(w)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", w.Name, err)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", w.Name, err)
		}
		props[w.Name] = raw
	}
	return props, nil
}

func encodeProperty(w model.PropertyWrite) (map[string]any, error) {
	switch w.Kind {
	case model.KindTitle:
		return map[string]any{"title": textItems(w.Text)}, nil
	case model.KindRichText:
		return map[string]any{"rich_text": textItems(w.Text)}, nil
	case model.KindSelect:
		if w.Text == "" {
			return map[string]any{"select": nil}, nil
		}
		return map[string]any{"select": SelectOption{Name: w.Text}}, nil
	case model.KindMultiSelect:
		opts := []SelectOption{}
		if w.Text != "" {
			opts = append(opts, SelectOption{Name: w.Text})
		}
		return map[string]any{"multi_select": opts}, nil
	case model.KindURL:
		if w.Text == "" {
			return map[string]any{"url": nil}, nil
		}
		return map[string]any{"url": w.Text}, nil
	case model.KindNumber:
		return map[string]any{"number": w.Number}, nil
	case model.KindDate:
		if w.Date == nil {
			return map[string]any{"date": nil}, nil
		}
		return map[string]any{"date": DateValue{Start: w.Date.UTC().Format(time.RFC3339)}}, nil
	case model.KindCheckbox:
		return map[string]any{"checkbox": w.Checked}, nil
	}
	return nil, fmt.Errorf("unsupported property kind %q", w.Kind)
}

func textItems(s string) []RichText {
	if s == "" {
		return []RichText{}
	}
	if r := []rune(s); len(r) > maxTextLength {
		s = string(r[:maxTextLength])
	}
	return []RichText{{Type: "text", Text: &TextBody{Content: s}}}
}
