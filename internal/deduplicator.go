package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// Deduplicator keeps tabular results unique by (objective, query, platform)
type Deduplicator struct{}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Deduplicate removes results whose key was already seen, keeping the first
func (d *Deduplicator) Deduplicate(results []TabularResult) []TabularResult {
	seen := make(map[string]bool)
	unique := make([]TabularResult, 0, len(results))

	for _, result := range results {
		hash := d.hashResultKey(result)
		if !seen[hash] {
			seen[hash] = true
			unique = append(unique, result)
		}
	}

	return unique
}

// Contains reports whether results already holds an entry with the same key as r
func (d *Deduplicator) Contains(results []TabularResult, r TabularResult) bool {
	hash := d.hashResultKey(r)
	for _, existing := range results {
		if d.hashResultKey(existing) == hash {
			return true
		}
	}
	return false
}

// Append adds r unless an entry with the same key exists. It reports whether r was added.
func (d *Deduplicator) Append(results []TabularResult, r TabularResult) ([]TabularResult, bool) {
	if d.Contains(results, r) {
		return results, false
	}
	return append(results, r), true
}

// hashResultKey creates a hash of the identifying fields of a result
func (d *Deduplicator) hashResultKey(r TabularResult) string {
	h := sha256.New()

	// Separators keep ("ab","c") distinct from ("a","bc")
	h.Write([]byte(r.Objective))
	h.Write([]byte{0})
	h.Write([]byte(r.Query))
	h.Write([]byte{0})
	h.Write([]byte(r.Platform))

	return hex.EncodeToString(h.Sum(nil))
}
