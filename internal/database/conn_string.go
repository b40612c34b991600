package database

import (
	"fmt"
	"net/url"

	"github.com/relaylabs/chatrelay/internal/config"
)

// BuildConnString renders the pgx connection URL for the relay database.
// Defaults such as port and sslmode are applied by the config loader
// before the settings reach this point.
func BuildConnString(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     cfg.Name,
		RawQuery: "sslmode=" + cfg.SSLMode,
	}
	return u.String()
}
