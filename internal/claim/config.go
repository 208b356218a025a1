package claim

import (
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultLinkTTL = 14 * 24 * time.Hour

type Config struct {
	BaseURL string
	LinkTTL time.Duration
}

// ConfigFromEnv reads CLAIM_BASE_URL and CLAIM_LINK_TTL.
func ConfigFromEnv() Config {
	base := os.Getenv("CLAIM_BASE_URL")
	if base == "" {
		base = "http://localhost:3000"
	}
	ttl := defaultLinkTTL
	if v := os.Getenv("CLAIM_LINK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ttl = d
		}
	}
	return Config{BaseURL: base, LinkTTL: ttl}
}

// ClaimURL builds {base}/u/{username}/claim?token={secret}.
func (c Config) ClaimURL(username, secret string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/u/" + url.PathEscape(username) +
		"/claim?token=" + url.QueryEscape(secret)
}
