// Package catalog resolves free-text item names against a tenant catalog
// using layered matching: exact, substring, token overlap, then fuzzy
// per-token near matching.
package catalog

import (
	"math"
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/textutil"
)

// ScoreThreshold is the minimum score (out of 1000) for a match to count.
const ScoreThreshold = 560

const (
	scoreExact     = 1000
	scoreSubstring = 800
	ratioFloor     = 0.6
	ratioBase      = 500
	ratioScale     = 130
)

// Match pairs a catalog entry with the score it resolved at.
type Match struct {
	Entry domain.CatalogEntry
	Score int
}

// Resolve maps a free-text item name onto the best-scoring catalog entry,
// or returns false when nothing reaches the threshold.
func Resolve(name string, entries []domain.CatalogEntry) (Match, bool) {
	norm := textutil.Normalize(name)
	if norm == "" || len(entries) == 0 {
		return Match{}, false
	}

	best := Match{}
	for _, e := range entries {
		s := score(norm, textutil.Normalize(e.Name))
		if s > best.Score {
			best = Match{Entry: e, Score: s}
		}
	}
	if best.Score < ScoreThreshold {
		return Match{}, false
	}
	return best, true
}

// BatchResult is the outcome of resolving a whole cart.
type BatchResult struct {
	Resolved   []domain.Item
	Unresolved []string
}

// ResolveBatch resolves every cart line, annotating resolved lines with the
// catalog code and unit price. Unresolved names block order commit.
func ResolveBatch(items []domain.Item, entries []domain.CatalogEntry) BatchResult {
	var out BatchResult
	for _, it := range items {
		m, ok := Resolve(it.Name, entries)
		if !ok {
			out.Unresolved = append(out.Unresolved, it.Name)
			continue
		}
		it.CatalogCode = m.Entry.Code
		it.UnitPriceCents = m.Entry.UnitPriceCents
		out.Resolved = append(out.Resolved, it)
	}
	return out
}

func score(query, entry string) int {
	if entry == "" {
		return 0
	}
	if query == entry {
		return scoreExact
	}
	if strings.Contains(entry, query) || strings.Contains(query, entry) {
		shorter := len(query)
		if len(entry) < shorter {
			shorter = len(entry)
		}
		return scoreSubstring + shorter
	}

	qTok := strings.Fields(query)
	eTok := strings.Fields(entry)
	ratio := overlapRatio(qTok, eTok)
	if r := overlapRatio(textutil.SingularizeAll(qTok), textutil.SingularizeAll(eTok)); r > ratio {
		ratio = r
	}
	if r := fuzzyRatio(qTok, eTok); r > ratio {
		ratio = r
	}
	if ratio < ratioFloor {
		return 0
	}
	return ratioBase + int(math.Round(ratio*ratioScale))
}

// overlapRatio is the share of query tokens present verbatim in the entry.
func overlapRatio(query, entry []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]bool, len(entry))
	for _, t := range entry {
		set[t] = true
	}
	hits := 0
	for _, t := range query {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// fuzzyRatio is the share of query tokens with an edit-distance near match
// in the entry, after singularization on both sides.
func fuzzyRatio(query, entry []string) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for _, q := range query {
		qs := textutil.Singularize(q)
		for _, e := range entry {
			if textutil.IsNearMatch(qs, textutil.Singularize(e)) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(query))
}
