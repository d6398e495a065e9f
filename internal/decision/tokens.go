package decision

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/overrides"
)

// Token is one manual override submitted for a source identifier.
type Token struct {
	Kind overrides.Kind
	ID   int
}

// String renders the token in input form, e.g. "r42".
func (t Token) String() string {
	prefix := "a"
	if t.Kind == overrides.KindReject {
		prefix = "r"
	}
	return prefix + strconv.Itoa(t.ID)
}

// ParseTokens parses comma-separated tokens such as "r319, a605". Each token is
// 'a' (accept) or 'r' (reject) followed by a non-negative source id. Empty
// input yields no tokens. Valid tokens are returned alongside one
// ErrMalformedOverrideToken error per bad token.
func ParseTokens(text string) ([]Token, []error) {
	var tokens []Token
	var errs []error

	for _, raw := range strings.Split(text, ",") {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}
		tok, err := parseToken(field)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, errs
}

func parseToken(field string) (Token, error) {
	var kind overrides.Kind
	switch field[0] {
	case 'a', 'A':
		kind = overrides.KindAccept
	case 'r', 'R':
		kind = overrides.KindReject
	default:
		return Token{}, malformedToken(field, "must start with 'a' or 'r'")
	}

	digits := strings.TrimSpace(field[1:])
	if digits == "" {
		return Token{}, malformedToken(field, "missing source id")
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return Token{}, malformedToken(field, "source id must be a non-negative integer")
		}
	}
	id, err := strconv.Atoi(digits)
	if err != nil {
		return Token{}, malformedToken(field, "source id out of range")
	}
	return Token{Kind: kind, ID: id}, nil
}

func malformedToken(field, reason string) error {
	return errors.New(fmt.Errorf("%w %q: %s", errors.ErrMalformedOverrideToken, field, reason)).
		Component("decision").
		Category(errors.CategoryOverride).
		Context("token", field).
		Build()
}
