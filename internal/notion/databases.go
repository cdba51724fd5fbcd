package notion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/tradesync/internal/model"
)

// Me returns the integration's bot user. It is the cheapest call that proves
// the token is valid.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/users/me", &user); err != nil {
		return nil, fmt.Errorf("get bot user: %w", err)
	}
	return &user, nil
}

// GetDatabase fetches a database definition.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	if err := c.get(ctx, "/databases/"+url.PathEscape(databaseID), &db); err != nil {
		return nil, fmt.Errorf("get database: %w", err)
	}
	return &db, nil
}

// DescribeSchema returns the properties defined on a database. Client errors
// (bad ID, no access, bad token) are SchemaErrors since retrying cannot fix
// them; anything else is a ConnectionError.
func (c *Client) DescribeSchema(ctx context.Context, databaseID string) (model.SchemaDescriptor, error) {
	db, err := c.GetDatabase(ctx, databaseID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return model.SchemaDescriptor{}, model.NewError(model.KindSchema, "describe schema", err)
		}
		return model.SchemaDescriptor{}, model.NewError(model.KindConnection, "describe schema", err)
	}

	schema := model.SchemaDescriptor{
		DatabaseID: db.ID,
		Title:      plainText(db.Title),
		Properties: make(map[string]model.PropertyKind, len(db.Properties)),
	}
	for key, prop := range db.Properties {
		name := prop.Name
		if name == "" {
			name = key
		}
		schema.Properties[name] = propertyKind(prop.Type)
	}

	return schema, nil
}

// QueryPages returns every page matching filter, following cursors until the
// result set is exhausted.
func (c *Client) QueryPages(ctx context.Context, databaseID string, filter *Filter) ([]Page, error) {
	var all []Page
	req := queryRequest{Filter: filter, PageSize: MaxPageSize}
	path := "/databases/" + url.PathEscape(databaseID) + "/query"

	for {
		var resp QueryResponse
		if err := c.query(ctx, path, req, &resp); err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}

		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		req.StartCursor = resp.NextCursor
	}

	c.logger.Debug("queried database", "database", databaseID, "pages", len(all))

	return all, nil
}

func propertyKind(t string) model.PropertyKind {
	switch k := model.PropertyKind(t); k {
	case model.KindTitle, model.KindRichText, model.KindNumber, model.KindSelect,
		model.KindMultiSelect, model.KindDate, model.KindCheckbox, model.KindURL,
		model.KindFormula, model.KindRollup, model.KindCreatedTime,
		model.KindLastEditedTime, model.KindUniqueID:
		return k
	}
	return model.KindOther
}

func plainText(items []RichText) string {
	var b strings.Builder
	for _, it := range items {
		switch {
		case it.PlainText != "":
			b.WriteString(it.PlainText)
		case it.Text != nil:
			b.WriteString(it.Text.Content)
		}
	}
	return b.String()
}
