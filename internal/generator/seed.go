package generator

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"
)

// StableSeed derives a deterministic sub-seed for a named scope. The same
// (base, scope...) always yields the same value on every platform.
func StableSeed(base int64, scope ...string) int64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", base, strings.Join(scope, ":"))))
	return int64(binary.BigEndian.Uint64(sum[:8]) >> 1)
}

// NewRand returns a random stream seeded from StableSeed.
func NewRand(base int64, scope ...string) *rand.Rand {
	return rand.New(rand.NewSource(StableSeed(base, scope...)))
}

// TableScope is the sub-seed scope used for a table's row generation.
func TableScope(table string) string {
	return "table:" + table
}

// FKScope is the sub-seed scope of one foreign key assignment pass.
func FKScope(childTable, childColumn, parentTable string) string {
	return "fk:" + childTable + ":" + childColumn + ":" + parentTable
}
