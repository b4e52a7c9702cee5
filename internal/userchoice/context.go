// Package userchoice implements the User-Choice Store (C8): persisted
// translation decisions for individual terms, matched against new
// occurrences by context similarity, with conflict detection/resolution
// and session lifecycle management.
//
// Grounded on the teacher's internal/storage/postgres.go for the
// database/sql connection-pool setup and UPSERT-by-id idiom, redirected
// here from lib/pq to modernc.org/sqlite for an embedded, single-node,
// file-backed store (see DESIGN.md's Open Question resolution).
package userchoice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

// ContextHash computes a stable fingerprint over the canonicalized
// semantic fields of a TranslationContext. Two contexts with equal hash are
// treated as identical for exact-match lookups.
func ContextHash(ctx model.TranslationContext) string {
	fields := []string{
		"semantic_field=" + ctx.SemanticField,
		"philosophical_domain=" + ctx.PhilosophicalDomain,
		"author=" + ctx.Author,
		"source_language=" + ctx.SourceLanguage,
		"target_language=" + ctx.TargetLanguage,
		"surrounding_terms=" + canonicalSet(ctx.SurroundingTerms),
		"related_concepts=" + canonicalSet(ctx.RelatedConcepts),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func canonicalSet(items []string) string {
	cp := append([]string(nil), items...)
	sort.Strings(cp)
	return strings.Join(cp, ",")
}

// similarityWeights are the weighted Jaccard-like coefficients applied to
// each TranslationContext dimension. They sum to 1.0.
const (
	weightSemanticField       = 0.25
	weightPhilosophicalDomain = 0.20
	weightAuthor              = 0.15
	weightSurroundingTerms    = 0.15
	weightRelatedConcepts     = 0.10
	weightSourceLanguage      = 0.075
	weightTargetLanguage      = 0.075
)

// Similarity computes the weighted Jaccard-like score between two contexts,
// in [0, 1]. Scalar fields contribute their full weight on exact match, 0
// otherwise; set fields (surrounding_terms, related_concepts) contribute
// their weight scaled by Jaccard index.
func Similarity(a, b model.TranslationContext) float64 {
	score := 0.0
	score += weightSemanticField * scalarMatch(a.SemanticField, b.SemanticField)
	score += weightPhilosophicalDomain * scalarMatch(a.PhilosophicalDomain, b.PhilosophicalDomain)
	score += weightAuthor * scalarMatch(a.Author, b.Author)
	score += weightSurroundingTerms * jaccard(a.SurroundingTerms, b.SurroundingTerms)
	score += weightRelatedConcepts * jaccard(a.RelatedConcepts, b.RelatedConcepts)
	score += weightSourceLanguage * scalarMatch(a.SourceLanguage, b.SourceLanguage)
	score += weightTargetLanguage * scalarMatch(a.TargetLanguage, b.TargetLanguage)
	return score
}

func scalarMatch(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return 0
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)
	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA)
	for k := range setB {
		if !setA[k] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[item] = true
	}
	return out
}

// SimilarityThreshold is the minimum score for two contexts to be
// considered "similar" for CONTEXTUAL matching and conflict detection.
const SimilarityThreshold = 0.8

func scopeRank(scope model.ChoiceScope) int {
	switch scope {
	case model.ScopeSession:
		return 0
	case model.ScopeDocument:
		return 1
	case model.ScopeContextual:
		return 2
	case model.ScopeGlobal:
		return 3
	default:
		return 4
	}
}

func choiceKey(term, contextHash string, scope model.ChoiceScope, sessionID string) string {
	return fmt.Sprintf("%s|%s|%s|%s", term, contextHash, scope, sessionID)
}
