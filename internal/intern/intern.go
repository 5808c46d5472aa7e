// Package intern deduplicates strings via content hashing, replacing the
// pointer-identity comparisons spec section 9's "cyclic graphs" note warns
// against for values that may be reconstructed more than once; its one
// user is internal/lir, for string literals seen twice in one translation
// unit.
package intern

import "github.com/cespare/xxhash/v2"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// StringPool interns strings, returning a stable small integer id for each
// distinct value so callers can derive deterministic symbol names
// (".LC0", ".LC1", ...) instead of hashing the string itself into the
// symbol name.
type StringPool struct {
	buckets map[uint64][]entry
	next    int
}

type entry struct {
	value string
	id    int
}

// ---------------------
// ----- functions -----
// ---------------------

// New returns an empty StringPool.
func New() *StringPool {
	return &StringPool{buckets: make(map[uint64][]entry, 32)}
}

// Intern returns the id for s, allocating a fresh one on first sight. isNew
// reports whether this call allocated it.
func (p *StringPool) Intern(s string) (id int, isNew bool) {
	h := xxhash.Sum64String(s)
	for _, e := range p.buckets[h] {
		if e.value == s {
			return e.id, false
		}
	}
	id = p.next
	p.next++
	p.buckets[h] = append(p.buckets[h], entry{value: s, id: id})
	return id, true
}

// Len returns the number of distinct strings interned so far.
func (p *StringPool) Len() int { return p.next }
