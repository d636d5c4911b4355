package redis

import "time"

// defaultPrefix mirrors the original implementation's default key
// prefix, so operators migrating wire-compatible deployments see the
// same key names.
const defaultPrefix = "freqlimit:gcra:"

// Option configures a Backend at construction time.
type Option func(*config)

type config struct {
	prefix   string
	extraTTL time.Duration
}

func newConfig() *config {
	return &config{prefix: defaultPrefix}
}

// WithPrefix overrides the key prefix prepended to every limiter key.
func WithPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}

// WithExtraTTL adds a fixed buffer on top of the residual schedule
// debt (new TAT minus server now) before a key expires, giving
// slow-moving keys more room before Redis reclaims them between
// reservations. tau is not added to the TTL.
func WithExtraTTL(d time.Duration) Option {
	return func(c *config) { c.extraTTL = d }
}
