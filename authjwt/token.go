package authjwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/brokerd/brokerd/acl"
	"github.com/brokerd/brokerd/types"
)

var (
	errNoToken       = errors.New("authjwt: no token present")
	errRequiredClaim = errors.New("authjwt: required claim validation failed")
)

func extractToken(cfg *Config, username, password string) (string, error) {
	var tok string
	if cfg.From == FromUsername {
		tok = username
	} else {
		tok = password
	}
	if tok == "" {
		return "", errNoToken
	}
	return tok, nil
}

// standardAuth parses and validates tok against the configured standard
// claims (exp/nbf/aud/iss/sub), each validator value itself placeholder-
// substituted the way the original backend does before comparison.
func standardAuth(cfg *Config, tok string, p acl.Placeholders) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if cfg.ValidateExpiration {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(acl.SubstituteJWT(cfg.Audience, p)))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(acl.SubstituteJWT(cfg.Issuer, p)))
	}
	if cfg.Subject != "" {
		opts = append(opts, jwt.WithSubject(acl.SubstituteJWT(cfg.Subject, p)))
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(opts...)
	_, err := parser.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("authjwt: standard auth: %w", err)
	}
	return claims, nil
}

// extendedAuth checks every configured custom claim against its allow-list
// of (placeholder-substituted) values; the first mismatch fails auth.
func extendedAuth(cfg *Config, claims jwt.MapClaims, p acl.Placeholders) error {
	for _, check := range cfg.Checks {
		actual, ok := claims[check.Claim].(string)
		if !ok {
			return fmt.Errorf("%w: claim %q missing or not a string", errRequiredClaim, check.Claim)
		}
		allowed := false
		for _, v := range check.Values {
			if actual == acl.SubstituteJWT(v, p) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: claim %q value %q not permitted", errRequiredClaim, check.Claim, actual)
		}
	}
	return nil
}

// authInfoFromClaims builds types.AuthInfo from the validated claims,
// reading optional "superuser", "acl" and "exp" fields.
func authInfoFromClaims(claims jwt.MapClaims) *types.AuthInfo {
	info := &types.AuthInfo{}
	if su, ok := claims["superuser"].(bool); ok {
		info.Superuser = su
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpireAt = exp.UnixMilli()
	}
	if rawRules, ok := claims["acl"].([]any); ok {
		for _, r := range rawRules {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			rule := types.Rule{}
			if tf, ok := m["topic"].(string); ok {
				rule.TopicFilter = tf
			}
			if allow, ok := m["allow"].(bool); ok {
				rule.Allow = allow
			}
			switch m["access"] {
			case "pub":
				rule.Access = types.ACLTypePublish
			default:
				rule.Access = types.ACLTypeSubscribe
			}
			info.Rules = append(info.Rules, rule)
		}
	}
	return info
}
