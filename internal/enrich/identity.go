package enrich

import (
	"math/bits"
	"strings"
)

// Identity names a unit within a run. Identities must be unique across the
// descriptor set handed to Build.
type Identity string

func (id Identity) String() string { return string(id) }

// Kind is a single-bit result flag contributed by a unit. The subject's
// accumulated flags are the bitwise OR of every completed unit's Kind.
type Kind uint64

// Has reports whether every bit of other is set on k. A zero other never matches.
func (k Kind) Has(other Kind) bool {
	return other != 0 && k&other == other
}

// Count returns the number of flags set.
func (k Kind) Count() int {
	return bits.OnesCount64(uint64(k))
}

// Descriptor is the declarative part of a unit: who it is, what it needs,
// and which flag it sets once it completes.
type Descriptor struct {
	ID   Identity
	Deps []Identity
	Kind Kind
}

// Identities returns the IDs of the supplied descriptors in order.
func Identities(descs []Descriptor) []Identity {
	ids := make([]Identity, 0, len(descs))
	for _, desc := range descs {
		ids = append(ids, desc.ID)
	}
	return ids
}

// JoinIdentities renders identities as a comma separated list for logs.
func JoinIdentities(ids []Identity) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ",")
}

// ParseIdentities splits a comma separated list, dropping blanks.
func ParseIdentities(value string) []Identity {
	var ids []Identity
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, Identity(trimmed))
		}
	}
	return ids
}
