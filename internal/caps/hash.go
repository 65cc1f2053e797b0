package caps

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old digests.
const (
	HashDomainTable = "vidcaps/table/v1"
	HashDomainState = "vidcaps/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonicalizes v and hashes it under domain.
func Hash(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// TableHash identifies a platform's capability content. The Hash field
// itself is excluded, and the result depends only on table contents, not on
// where the table was loaded from.
func TableHash(p *Platform) (string, error) {
	return Hash(HashDomainTable, struct {
		Name         string       `json:"name"`
		Core         CoreCaps     `json:"core"`
		Capabilities []Descriptor `json:"capabilities"`
		UBWC         UBWCConfig   `json:"ubwc"`
		CSC          CSCConfig    `json:"csc"`
	}{p.Name, p.Core, p.Capabilities, p.UBWC, p.CSC})
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(domain string, v any) string {
	h, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
