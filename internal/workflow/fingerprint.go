package workflow

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ormsift/ormsift/internal/core"
)

// Fingerprint reduces a SQL statement to a shape-stable key: the redundant
// marker stripped, string and numeric literals replaced with placeholders,
// whitespace collapsed, case folded. Statements differing only in bound
// values share a fingerprint.
func Fingerprint(sql string) string {
	s := core.StripMarker(sql)
	var b strings.Builder
	b.Grow(len(s))

	i := 0
	pendingSpace := false
	emit := func(r rune) {
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	runes := []rune(s)
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			quote := r
			i++
			for i < len(runes) {
				if runes[i] == '\\' {
					i += 2
					continue
				}
				if runes[i] == quote {
					i++
					break
				}
				i++
			}
			emit('?')
		case unicode.IsDigit(r):
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			emit('?')
		case unicode.IsSpace(r):
			pendingSpace = true
			i++
		default:
			emit(unicode.ToLower(r))
			i++
		}
	}
	return b.String()
}

type candidateKind string

const (
	candidateRedundant candidateKind = "redundant"
	candidateMissing   candidateKind = "missing"
)

// candidate is one statement the fingerprint analysis wants the generator
// to rule on: either redundant on its record, or missing from it relative
// to the reference caller.
type candidate struct {
	Kind        candidateKind
	RecordIndex int
	Key         core.EntityKey
	Statement   string
	Reference   core.EntityKey
}

// AnalysisStats summarizes one fingerprint pass.
type AnalysisStats struct {
	Groups          int `json:"groups"`
	Redundant       int `json:"redundant_candidates"`
	Missing         int `json:"missing_candidates"`
	NewFingerprints int `json:"new_fingerprints"`
}

// fingerprints returns a record's distinct statement fingerprints, each
// mapped to its first example text, plus insertion order for determinism.
func fingerprints(rec *core.Record) (map[string]string, []string) {
	byFP := make(map[string]string)
	var order []string
	for _, stmt := range rec.SQL.Statements() {
		fp := Fingerprint(stmt)
		if fp == "" {
			continue
		}
		if _, ok := byFP[fp]; !ok {
			byFP[fp] = stmt
			order = append(order, fp)
		}
	}
	return byFP, order
}

// analyzeRedundancy compares callers of the same ORM method. The caller
// covering the most distinct fingerprints (ties broken by statement count,
// then input order) becomes the group's reference; for every other caller
// it emits redundant candidates when that caller's fingerprints form a
// proper subset of the reference's, and missing candidates for reference
// fingerprints the caller lacks. Fingerprints nobody's reference covers are
// only counted.
func analyzeRedundancy(records []core.Record) ([]candidate, AnalysisStats) {
	var stats AnalysisStats

	groups := make(map[string][]int)
	for i := range records {
		if records[i].SQL.IsSentinel() {
			continue
		}
		groups[records[i].ORMCode] = append(groups[records[i].ORMCode], i)
	}

	ormCodes := make([]string, 0, len(groups))
	for code, members := range groups {
		if len(members) > 1 {
			ormCodes = append(ormCodes, code)
		}
	}
	sort.Strings(ormCodes)

	var candidates []candidate
	for _, code := range ormCodes {
		members := groups[code]
		stats.Groups++

		type memberInfo struct {
			idx   int
			byFP  map[string]string
			order []string
			stmts int
		}
		infos := make([]memberInfo, 0, len(members))
		for _, idx := range members {
			byFP, order := fingerprints(&records[idx])
			infos = append(infos, memberInfo{
				idx:   idx,
				byFP:  byFP,
				order: order,
				stmts: len(records[idx].SQL.Statements()),
			})
		}

		ref := 0
		for i := 1; i < len(infos); i++ {
			switch {
			case len(infos[i].byFP) > len(infos[ref].byFP):
				ref = i
			case len(infos[i].byFP) == len(infos[ref].byFP) && infos[i].stmts > infos[ref].stmts:
				ref = i
			}
		}
		refInfo := infos[ref]
		refKey := records[refInfo.idx].Key()

		for i, info := range infos {
			if i == ref {
				continue
			}
			key := records[info.idx].Key()

			covered := 0
			for _, fp := range info.order {
				if _, ok := refInfo.byFP[fp]; ok {
					covered++
				}
			}
			properSubset := covered == len(info.order) && len(info.order) < len(refInfo.order)

			if properSubset {
				for _, fp := range info.order {
					candidates = append(candidates, candidate{
						Kind:        candidateRedundant,
						RecordIndex: info.idx,
						Key:         key,
						Statement:   info.byFP[fp],
						Reference:   refKey,
					})
					stats.Redundant++
				}
			}

			for _, fp := range refInfo.order {
				if _, ok := info.byFP[fp]; !ok {
					candidates = append(candidates, candidate{
						Kind:        candidateMissing,
						RecordIndex: info.idx,
						Key:         key,
						Statement:   refInfo.byFP[fp],
						Reference:   refKey,
					})
					stats.Missing++
				}
			}

			stats.NewFingerprints += len(info.order) - covered
		}
	}
	return candidates, stats
}
