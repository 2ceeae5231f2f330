// Package retrieval implements hybrid weighted memory scoring (C5) and
// the ordered prompt composer that turns a ranked context list, the
// identity kernel, and the conversation ring into a single prompt.
package retrieval

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aigent-dev/aigent/pkg/models"
)

// Weights holds the five scoring signal weights. DefaultWeights sum to
// 1; when there is no query embedding, Rank calls WithoutEmbeddings,
// which sets Embedding to 0 and redistributes its share proportionally
// into the other four.
type Weights struct {
	Tier       float64
	Recency    float64
	Lexical    float64
	Embedding  float64
	Confidence float64
}

// DefaultWeights are the spec's nominal weights.
var DefaultWeights = Weights{
	Tier:       0.35,
	Recency:    0.20,
	Lexical:    0.25,
	Embedding:  0.15,
	Confidence: 0.05,
}

// WithoutEmbeddings returns w with the embedding weight redistributed
// proportionally across the remaining four signals, rather than simply
// zeroed. This is required whenever no embedding backend is configured.
func (w Weights) WithoutEmbeddings() Weights {
	if w.Embedding == 0 {
		return w
	}
	remainder := w.Tier + w.Recency + w.Lexical + w.Confidence
	if remainder == 0 {
		return w
	}
	scale := (remainder + w.Embedding) / remainder
	return Weights{
		Tier:       w.Tier * scale,
		Recency:    w.Recency * scale,
		Lexical:    w.Lexical * scale,
		Embedding:  0,
		Confidence: w.Confidence * scale,
	}
}

// tierPriority maps a tier to its raw priority score in [0,1]. Core,
// UserProfile, and Reflective entries (and any agent-perspective:*
// tagged entry) are priority-equivalent at the top.
func tierPriority(e *models.MemoryEntry) float64 {
	if e.HasTag("agent-perspective") || hasAgentPerspectivePrefix(e.Tags) {
		return 1.0
	}
	switch e.Tier {
	case models.TierCore, models.TierUserProfile, models.TierReflective:
		return 1.0
	case models.TierSemantic:
		return 0.6
	case models.TierProcedural, models.TierEpisodic:
		return 0.3
	default:
		return 0.3
	}
}

func hasAgentPerspectivePrefix(tags []string) bool {
	for _, t := range tags {
		if strings.HasPrefix(t, "agent-perspective:") {
			return true
		}
	}
	return false
}

// recencyScore decays monotonically with age, bounded in [0,1].
func recencyScore(createdAt time.Time, now time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return 1 / (1 + days)
}

// tokenize lowercases and splits into alphanumeric tokens of length >=2,
// adapted from the memory-search tool's lexical tokenizer.
func tokenize(content string) []string {
	content = strings.ToLower(content)
	fields := strings.FieldsFunc(content, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// tfidfIndex holds corpus-level document frequency, adapted from the
// memory-search tool's TF-IDF vectorizer so the hybrid retriever falls
// back to weighted term importance rather than plain lexical overlap
// when no embedding backend is configured.
type tfidfIndex struct {
	df    map[string]int
	total int
}

// buildTFIDFIndex computes document frequency for every token across
// candidates' content, treating each entry as one document.
func buildTFIDFIndex(candidates []*models.MemoryEntry) *tfidfIndex {
	df := map[string]int{}
	for _, e := range candidates {
		seen := make(map[string]bool)
		for _, token := range tokenize(e.Content) {
			if seen[token] {
				continue
			}
			seen[token] = true
			df[token]++
		}
	}
	return &tfidfIndex{df: df, total: len(candidates)}
}

// vectorize turns tokens into a sparse tf*idf vector over this index.
// A token never seen in the corpus contributes nothing: there is no
// document frequency to weight it by.
func (idx *tfidfIndex) vectorize(tokens []string) map[string]float64 {
	tf := map[string]int{}
	for _, t := range tokens {
		tf[t]++
	}
	vec := make(map[string]float64, len(tf))
	for token, count := range tf {
		df := idx.df[token]
		if df == 0 || idx.total == 0 {
			continue
		}
		vec[token] = float64(count) * (1.0 + math.Log(float64(idx.total)/float64(df)))
	}
	return vec
}

// cosineSparse computes cosine similarity between two sparse tf*idf
// vectors. Distinct from cosine (dense embedding vectors below): Go
// has no overloading and the two shapes are not interchangeable.
func cosineSparse(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for token, va := range a {
		normA += va * va
		if vb, ok := b[token]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tfidfLexicalScore replaces plain token-overlap with TF-IDF weighted
// cosine similarity between the query and content, both vectorized
// against idx's corpus-level document frequency.
func tfidfLexicalScore(idx *tfidfIndex, query, content string) float64 {
	qVec := idx.vectorize(tokenize(query))
	cVec := idx.vectorize(tokenize(content))
	return cosineSparse(qVec, cVec)
}

// cosine computes cosine similarity between two dense vectors.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scored pairs a memory entry with its composite retrieval score.
type Scored struct {
	Entry *models.MemoryEntry
	Score float64
}

// Score computes the weighted composite score for one entry against a
// query (and its embedding, if any). Lacking any corpus to draw
// document frequency from, it builds a single-document TF-IDF index
// from e alone; Rank, which sees the full candidate set, scores against
// a shared corpus-level index instead and should be preferred when one
// is available.
func Score(e *models.MemoryEntry, query string, queryEmbedding []float32, w Weights, now time.Time) float64 {
	return score(e, query, queryEmbedding, buildTFIDFIndex([]*models.MemoryEntry{e}), w, now)
}

func score(e *models.MemoryEntry, query string, queryEmbedding []float32, idx *tfidfIndex, w Weights, now time.Time) float64 {
	tier := tierPriority(e)
	recency := recencyScore(e.CreatedAt, now)
	lexical := tfidfLexicalScore(idx, query, e.Content)
	embedding := 0.0
	if len(queryEmbedding) > 0 && len(e.Embedding) > 0 {
		embedding = cosine(queryEmbedding, e.Embedding)
	}
	confidence := e.Confidence

	return w.Tier*tier + w.Recency*recency + w.Lexical*lexical + w.Embedding*embedding + w.Confidence*confidence
}

// Rank scores every candidate against query and returns them sorted by
// descending score, with Core/UserProfile entries pinned to the front
// regardless of rank, then capped at limit. The TF-IDF document
// frequency index is built once over every candidate so the hybrid
// retriever's no-embedding fallback reflects corpus-wide term
// importance instead of scoring each entry in isolation.
func Rank(candidates []*models.MemoryEntry, query string, queryEmbedding []float32, w Weights, limit int, now time.Time) []Scored {
	if len(queryEmbedding) == 0 {
		w = w.WithoutEmbeddings()
	}

	idx := buildTFIDFIndex(candidates)
	var pinned, rest []Scored
	for _, e := range candidates {
		s := Scored{Entry: e, Score: score(e, query, queryEmbedding, idx, w, now)}
		if e.Tier == models.TierCore || e.Tier == models.TierUserProfile {
			pinned = append(pinned, s)
		} else {
			rest = append(rest, s)
		}
	}

	sortDesc := func(items []Scored) {
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Score == items[j].Score {
				return items[i].Entry.CreatedAt.After(items[j].Entry.CreatedAt)
			}
			return items[i].Score > items[j].Score
		})
	}
	sortDesc(pinned)
	sortDesc(rest)

	// Pinned entries are always included regardless of rank; only the
	// non-pinned tail is capped by limit.
	if limit > 0 && len(pinned)+len(rest) > limit {
		if len(pinned) >= limit {
			rest = nil
		} else {
			rest = rest[:limit-len(pinned)]
		}
	}
	return append(pinned, rest...)
}
