// Package authjwt implements the JWT-backed authentication plugin,
// grounded on rmqtt-auth-jwt's lib.rs: it validates a bearer token
// extracted from the CONNECT username or password, and derives ACL rules
// and superuser status from its claims. Unlike authhttp, it never performs
// an independent ACL lookup: subscribe/publish checks only consult the
// rules embedded in the token itself.
package authjwt

// From selects whether the token travels in the username or password
// field of CONNECT.
type From byte

const (
	FromUsername From = iota
	FromPassword
)

// ClaimCheck is one custom-claim allow-list entry: claim must equal one of
// Values (after placeholder substitution) or authentication fails.
type ClaimCheck struct {
	Claim  string   `mapstructure:"claim"`
	Values []string `mapstructure:"values"`
}

// Config is the full auth-jwt plugin configuration.
type Config struct {
	From               From         `mapstructure:"from"`
	Secret             string       `mapstructure:"secret"`
	ValidateExpiration bool         `mapstructure:"validate_expiration"`
	ValidateNotBefore  bool         `mapstructure:"validate_not_before"`
	Audience           string       `mapstructure:"audience"`
	Issuer             string       `mapstructure:"issuer"`
	Subject            string       `mapstructure:"subject"`
	DisconnectIfExpiry bool         `mapstructure:"disconnect_if_expiry"`
	Checks             []ClaimCheck `mapstructure:"checks"`
}

func DefaultConfig() *Config {
	return &Config{
		From:               FromPassword,
		ValidateExpiration: true,
		DisconnectIfExpiry: true,
	}
}
