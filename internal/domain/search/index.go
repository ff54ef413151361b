package search

import (
	"sort"
	"strings"

	"github.com/termbridge/termbridge/internal/domain/record"
)

// Match ranks per the three search tiers. Lower rank is stronger.
const (
	RankCode    = 1 // exact code match, case-sensitive
	RankDisplay = 2 // exact or prefix match on display or synonym
	RankKeyword = 3 // token overlap with keywords and synonym tokens
)

// Match is one ranked search hit. Score is the token-overlap count and is
// only meaningful at RankKeyword.
type Match struct {
	Record *record.TerminologyRecord `json:"record"`
	Rank   int                       `json:"rank"`
	Score  int                       `json:"score"`
}

// nameEntry is one display or synonym string prepared for prefix matching.
type nameEntry struct {
	lowered string
	rec     *record.TerminologyRecord
}

// index is an immutable snapshot of the searchable structures. It is built
// from a record store snapshot and never mutated afterwards, so readers may
// use it without locks.
type index struct {
	byCode   map[string]*record.TerminologyRecord
	names    []nameEntry
	postings map[string]map[string]*record.TerminologyRecord // token → code → record
}

// Tokenize splits a string into lower-cased whitespace-delimited tokens.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// buildIndex computes all lookup structures from a store snapshot.
func buildIndex(records []*record.TerminologyRecord) *index {
	idx := &index{
		byCode:   make(map[string]*record.TerminologyRecord, len(records)),
		postings: make(map[string]map[string]*record.TerminologyRecord),
	}

	for _, rec := range records {
		idx.byCode[rec.Code] = rec

		// Prefix matching operates on whole names and on every word within
		// them, so "jwara" finds "Vataja Jwara" and "Kaphaja Jwara" alike.
		nameSeen := make(map[string]bool)
		addName := func(s string) {
			lowered := strings.ToLower(s)
			if lowered == "" || nameSeen[lowered] {
				return
			}
			nameSeen[lowered] = true
			idx.names = append(idx.names, nameEntry{lowered: lowered, rec: rec})
		}
		addName(rec.Display)
		for _, word := range Tokenize(rec.Display) {
			addName(word)
		}
		for _, syn := range rec.Synonyms {
			addName(syn)
			for _, word := range Tokenize(syn) {
				addName(word)
			}
		}

		tokens := append([]string(nil), rec.Keywords...)
		for _, syn := range rec.Synonyms {
			tokens = append(tokens, Tokenize(syn)...)
		}
		for _, tok := range tokens {
			byCode := idx.postings[tok]
			if byCode == nil {
				byCode = make(map[string]*record.TerminologyRecord)
				idx.postings[tok] = byCode
			}
			byCode[rec.Code] = rec
		}
	}

	sort.Slice(idx.names, func(i, j int) bool { return idx.names[i].lowered < idx.names[j].lowered })
	return idx
}

// search evaluates the three tiers in precedence order and merges them,
// keeping each record at its strongest rank only.
func (idx *index) search(query string, limit int) []Match {
	var out []Match
	seen := make(map[string]bool)

	take := func(m Match) bool {
		if seen[m.Record.Code] {
			return true
		}
		seen[m.Record.Code] = true
		out = append(out, m)
		return limit <= 0 || len(out) < limit
	}

	// Tier 1: exact code.
	if rec, ok := idx.byCode[query]; ok {
		if !take(Match{Record: rec, Rank: RankCode}) {
			return out
		}
	}

	// Tier 2: exact or prefix on display/synonym, alphabetical by display.
	lowered := strings.ToLower(query)
	var tier2 []*record.TerminologyRecord
	tier2Seen := make(map[string]bool)
	for _, n := range idx.names {
		if strings.HasPrefix(n.lowered, lowered) && !tier2Seen[n.rec.Code] {
			tier2Seen[n.rec.Code] = true
			tier2 = append(tier2, n.rec)
		}
	}
	sort.Slice(tier2, func(i, j int) bool {
		if tier2[i].Display != tier2[j].Display {
			return tier2[i].Display < tier2[j].Display
		}
		return tier2[i].Code < tier2[j].Code
	})
	for _, rec := range tier2 {
		if !take(Match{Record: rec, Rank: RankDisplay}) {
			return out
		}
	}

	// Tier 3: token overlap, descending overlap count then alphabetical.
	overlap := make(map[string]int)
	byCode := make(map[string]*record.TerminologyRecord)
	for _, tok := range Tokenize(query) {
		for code, rec := range idx.postings[tok] {
			overlap[code]++
			byCode[code] = rec
		}
	}
	tier3 := make([]Match, 0, len(overlap))
	for code, n := range overlap {
		tier3 = append(tier3, Match{Record: byCode[code], Rank: RankKeyword, Score: n})
	}
	sort.Slice(tier3, func(i, j int) bool {
		if tier3[i].Score != tier3[j].Score {
			return tier3[i].Score > tier3[j].Score
		}
		if tier3[i].Record.Display != tier3[j].Record.Display {
			return tier3[i].Record.Display < tier3[j].Record.Display
		}
		return tier3[i].Record.Code < tier3[j].Record.Code
	})
	for _, m := range tier3 {
		if !take(m) {
			return out
		}
	}

	return out
}
