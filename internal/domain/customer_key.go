package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// KeyKind tags which identity scheme a CustomerKey belongs to.
type KeyKind uint8

const (
	KeyKindLegacy KeyKind = iota + 1
	KeyKindExternal
)

const (
	legacyPrefix   = "legacy:"
	externalPrefix = "external:"
)

var ErrInvalidCustomerKey = errors.New("invalid customer key")

// CustomerKey addresses a customer under exactly one identity scheme: the
// legacy integer id or the identity provider's opaque user id.
type CustomerKey struct {
	kind     KeyKind
	legacy   int64
	external string
}

// LegacyKey builds a key for a legacy numeric customer id.
func LegacyKey(id int64) CustomerKey {
	return CustomerKey{kind: KeyKindLegacy, legacy: id}
}

// ExternalKey builds a key for an identity-provider user id.
func ExternalKey(id string) CustomerKey {
	return CustomerKey{kind: KeyKindExternal, external: id}
}

func (k CustomerKey) Kind() KeyKind { return k.kind }

func (k CustomerKey) IsZero() bool { return k.kind == 0 }

// Legacy returns the legacy id when k is a legacy key.
func (k CustomerKey) Legacy() (int64, bool) {
	return k.legacy, k.kind == KeyKindLegacy
}

// External returns the external id when k is an external key.
func (k CustomerKey) External() (string, bool) {
	return k.external, k.kind == KeyKindExternal
}

// String renders the key as "legacy:<id>" or "external:<id>".
func (k CustomerKey) String() string {
	switch k.kind {
	case KeyKindLegacy:
		return legacyPrefix + strconv.FormatInt(k.legacy, 10)
	case KeyKindExternal:
		return externalPrefix + k.external
	default:
		return ""
	}
}

// ParseCustomerKey parses the String form of a key.
func ParseCustomerKey(s string) (CustomerKey, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, legacyPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(s, legacyPrefix), 10, 64)
		if err != nil || id <= 0 {
			return CustomerKey{}, fmt.Errorf("%w: %q", ErrInvalidCustomerKey, s)
		}
		return LegacyKey(id), nil
	case strings.HasPrefix(s, externalPrefix):
		id := strings.TrimPrefix(s, externalPrefix)
		if id == "" {
			return CustomerKey{}, fmt.Errorf("%w: %q", ErrInvalidCustomerKey, s)
		}
		return ExternalKey(id), nil
	default:
		return CustomerKey{}, fmt.Errorf("%w: %q", ErrInvalidCustomerKey, s)
	}
}

// Identity is a resolved customer. Canonical is the key ledger operations are
// locked and claimed under; LegacyID and ExternalID carry every key known for
// the person so reads match rows written under either scheme.
type Identity struct {
	Canonical  CustomerKey
	LegacyID   *int64
	ExternalID *string
}

// NewIdentity builds an identity from whichever keys are known. The legacy key
// is canonical when present.
func NewIdentity(legacyID *int64, externalID *string) (Identity, error) {
	var id Identity
	if legacyID != nil && *legacyID > 0 {
		v := *legacyID
		id.LegacyID = &v
	}
	if externalID != nil && strings.TrimSpace(*externalID) != "" {
		v := strings.TrimSpace(*externalID)
		id.ExternalID = &v
	}
	switch {
	case id.LegacyID != nil:
		id.Canonical = LegacyKey(*id.LegacyID)
	case id.ExternalID != nil:
		id.Canonical = ExternalKey(*id.ExternalID)
	default:
		return Identity{}, ErrInvalidCustomerKey
	}
	return id, nil
}

// IdentityFromKey builds an identity carrying a single key.
func IdentityFromKey(k CustomerKey) (Identity, error) {
	if legacy, ok := k.Legacy(); ok {
		return NewIdentity(&legacy, nil)
	}
	if external, ok := k.External(); ok {
		return NewIdentity(nil, &external)
	}
	return Identity{}, ErrInvalidCustomerKey
}

func (i Identity) String() string {
	return i.Canonical.String()
}

// Matches reports whether a row stored under the given keys belongs to i.
func (i Identity) Matches(legacyID *int64, externalID *string) bool {
	if i.LegacyID != nil && legacyID != nil && *i.LegacyID == *legacyID {
		return true
	}
	if i.ExternalID != nil && externalID != nil && *i.ExternalID == *externalID {
		return true
	}
	return false
}
