package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/autoparts-api/internal/common"
)

// RolesClaim is the private claim carrying the caller's roles.
const RolesClaim = "roles"

// RoleAdmin grants access to promotion management.
const RoleAdmin = "admin"

// Claims is the verified identity carried by an access token.
type Claims struct {
	Subject string
	Roles   []string
}

// Verifier checks HMAC-signed access tokens.
type Verifier struct {
	Secret    []byte
	Validator TokenValidator
	Now       func() time.Time
}

// NewVerifier constructs a verifier pinned to HS256.
func NewVerifier(secret []byte, issuer, audience string, skew time.Duration) *Verifier {
	return &Verifier{
		Secret: secret,
		Validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
		Now: time.Now,
	}
}

// Parse verifies the signature and registered claims of token.
func (v *Verifier) Parse(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, unauthorized(errNoToken)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if v.Validator.Algorithm != "" && algorithm != v.Validator.Algorithm {
		return Claims{}, unauthorized(fmt.Errorf("auth: unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if err := v.Validator.Validate(parsed, algorithm, v.now()); err != nil {
		return Claims{}, unauthorized(err)
	}
	return Claims{Subject: parsed.Subject(), Roles: rolesOf(parsed)}, nil
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Signer issues access tokens. It backs the development token tool and tests;
// production tokens come from the identity provider sharing the secret.
type Signer struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// Sign returns a compact HS256 token for subject carrying roles.
func (s Signer) Sign(subject string, roles []string) (string, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl))
	if s.Issuer != "" {
		builder = builder.Issuer(s.Issuer)
	}
	if s.Audience != "" {
		builder = builder.Audience([]string{s.Audience})
	}
	if len(roles) > 0 {
		builder = builder.Claim(RolesClaim, roles)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func rolesOf(tok jwt.Token) []string {
	raw, ok := tok.Get(RolesClaim)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		return strings.Fields(v)
	}
	return nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		switch {
		case alg == "":
			return "", errors.New("auth: token missing algorithm")
		case alg == jwa.NoSignature:
			return "", errors.New("auth: token uses none algorithm")
		case algorithm == "":
			algorithm = alg
		case algorithm != alg:
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func unauthorized(err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, err)
}
