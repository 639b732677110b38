package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the registered claims of an already verified token.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate rejects tokens signed with an unexpected algorithm or missing an
// expiry or subject. It also rejects a malformed roles claim and an issuer,
// audience or validity window that does not match.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithValidator(jwt.ValidatorFunc(validateSubject)),
		jwt.WithValidator(jwt.ValidatorFunc(validateRolesClaim)),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

func validateSubject(_ context.Context, tok jwt.Token) jwt.ValidationError {
	if tok.Subject() == "" {
		return jwt.NewValidationError(errors.New("auth: token missing subject"))
	}
	return nil
}

// validateRolesClaim accepts an absent roles claim, a space separated string,
// or a list of non-empty strings.
func validateRolesClaim(_ context.Context, tok jwt.Token) jwt.ValidationError {
	raw, ok := tok.Get(RolesClaim)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return nil
	case []string:
		for _, role := range v {
			if role == "" {
				return jwt.NewValidationError(errors.New("auth: empty role in roles claim"))
			}
		}
		return nil
	case []any:
		for _, item := range v {
			if role, ok := item.(string); !ok || role == "" {
				return jwt.NewValidationError(fmt.Errorf("auth: roles claim holds %T", item))
			}
		}
		return nil
	}
	return jwt.NewValidationError(fmt.Errorf("auth: roles claim has type %T", raw))
}
