package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxIDLen bounds cache ids; longer ids keep a readable prefix and a hash suffix.
const MaxIDLen = 200

// Variation is one resolved context dimension of a cache id.
type Variation struct {
	Context string
	Value   string
}

// escaper backslash-escapes the separators so distinct inputs never join to the same id.
var escaper = strings.NewReplacer(`\`, `\\`, ":", `\:`, "[", `\[`, "]", `\]`)

// CacheID joins keys with ":" and appends ":[context]=value" for every variation.
// Separator characters inside keys, contexts and values are escaped with a backslash.
// keys keep their order; variations are expected pre-sorted by context.
func CacheID(keys []string, vars []Variation) string {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(':')
		}
		escaper.WriteString(&b, k)
	}
	for _, v := range vars {
		b.WriteString(":[")
		escaper.WriteString(&b, v.Context)
		b.WriteString("]=")
		escaper.WriteString(&b, v.Value)
	}
	return Shorten(b.String(), MaxIDLen)
}

// Shorten returns id unchanged when it fits max, else its first bytes plus
// ":" and the first 16 hex chars of its SHA-256.
func Shorten(id string, max int) string {
	if len(id) <= max {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	h := hex.EncodeToString(sum[:8])
	keep := max - len(h) - 1
	if keep < 0 {
		keep = 0
	}
	return id[:keep] + ":" + h
}
