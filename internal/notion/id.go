package notion

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var hexID = regexp.MustCompile(`[0-9a-fA-F]{32}$`)

// ParseDatabaseID normalizes a database reference to the dashed UUID form.
// It accepts dashed IDs, raw 32-character hex IDs and notion.so share URLs
// such as https://www.notion.so/workspace/Trades-0123456789abcdef0123456789abcdef?v=...
func ParseDatabaseID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("empty database id")
	}

	if strings.Contains(s, "://") || strings.HasPrefix(s, "notion.so/") || strings.HasPrefix(s, "www.notion.so/") {
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		s = strings.TrimSuffix(u.Path, "/")
		if i := strings.LastIndex(s, "/"); i >= 0 {
			s = s[i+1:]
		}
	}

	if id, err := uuid.Parse(s); err == nil {
		return id.String(), nil
	}

	m := hexID.FindString(strings.ReplaceAll(s, "-", ""))
	if m == "" {
		return "", fmt.Errorf("invalid database id %q", input)
	}
	id, err := uuid.Parse(m)
	if err != nil {
		return "", fmt.Errorf("invalid database id %q: %w", input, err)
	}
	return id.String(), nil
}
