// Package authhttp implements the HTTP-backed authentication and ACL
// plugin, grounded in full on rmqtt-auth-http's lib.rs: it authenticates
// CONNECT, checks subscribe/publish ACLs, and caches publish-ACL verdicts
// per session.
package authhttp

import "time"

// ReqConfig describes one HTTP request template (auth or ACL), matching
// the per-request config blocks of the original plugin.
type ReqConfig struct {
	URL         string            `mapstructure:"url"`
	Method      string            `mapstructure:"method"` // GET | POST-json | POST-form
	Headers     map[string]string `mapstructure:"headers"`
	Params      map[string]string `mapstructure:"params"`
	TimeoutMs   int               `mapstructure:"timeout_ms"`
}

// Config is the full auth-http plugin configuration.
type Config struct {
	HTTPTimeoutMs  int        `mapstructure:"http_timeout_ms"`
	DenyIfError    bool       `mapstructure:"deny_if_error"`
	DisconnectIfExpiry bool   `mapstructure:"disconnect_if_expiry"`
	HTTPAuthReq    *ReqConfig `mapstructure:"http_auth_req"`
	HTTPSuperuserReq *ReqConfig `mapstructure:"http_superuser_req"`
	HTTPACLReq     *ReqConfig `mapstructure:"http_acl_req"`
}

func (c *Config) timeout() time.Duration {
	if c.HTTPTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

func DefaultConfig() *Config {
	return &Config{
		HTTPTimeoutMs:      10_000,
		DenyIfError:        false,
		DisconnectIfExpiry: true,
	}
}
