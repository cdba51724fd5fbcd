package database

import (
	"net/url"
	"strconv"

	"github.com/rickgao/tradesync/internal/config"
)

// ApplicationName is reported to the server in pg_stat_activity.
const ApplicationName = "tradesync"

// BuildConnString builds a PostgreSQL connection URL from config. The
// password is omitted when empty so pgpass and trust auth still work.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	u.RawQuery = q.Encode()

	return u.String()
}
