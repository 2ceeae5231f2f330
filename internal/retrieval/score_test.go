package retrieval

import (
	"testing"
	"time"

	"github.com/aigent-dev/aigent/pkg/models"
)

func TestWeightsWithoutEmbeddingsRedistributesProportionally(t *testing.T) {
	w := DefaultWeights.WithoutEmbeddings()
	if w.Embedding != 0 {
		t.Errorf("Embedding = %v, want 0", w.Embedding)
	}
	sum := w.Tier + w.Recency + w.Lexical + w.Confidence
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("sum of redistributed weights = %v, want 1.0", sum)
	}
	// Proportional, not uniform: Tier's share of the remainder should
	// stay the largest.
	if w.Tier <= w.Recency || w.Tier <= w.Lexical {
		t.Errorf("redistribution changed relative ordering: %+v", w)
	}
}

func TestRankPinsCoreAndUserProfileRegardlessOfScore(t *testing.T) {
	now := time.Now()
	core := &models.MemoryEntry{ID: "core1", Tier: models.TierCore, Content: "irrelevant content zz", CreatedAt: now.Add(-1000 * 24 * time.Hour)}
	episodic := &models.MemoryEntry{ID: "ep1", Tier: models.TierEpisodic, Content: "apple banana", Confidence: 1, CreatedAt: now}

	ranked := Rank([]*models.MemoryEntry{core, episodic}, "apple banana", nil, DefaultWeights, 1, now)

	found := false
	for _, s := range ranked {
		if s.Entry.ID == "core1" {
			found = true
		}
	}
	if !found {
		t.Error("Core entry was excluded by the rank cap; Core/UserProfile must always be included")
	}
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	now := time.Now()
	strong := &models.MemoryEntry{ID: "strong", Tier: models.TierSemantic, Content: "apple banana cherry", Confidence: 0.9, CreatedAt: now}
	weak := &models.MemoryEntry{ID: "weak", Tier: models.TierSemantic, Content: "unrelated text", Confidence: 0.1, CreatedAt: now.Add(-100 * 24 * time.Hour)}

	ranked := Rank([]*models.MemoryEntry{weak, strong}, "apple banana cherry", nil, DefaultWeights, 0, now)
	if len(ranked) != 2 {
		t.Fatalf("len(ranked) = %d, want 2", len(ranked))
	}
	if ranked[0].Entry.ID != "strong" {
		t.Errorf("ranked[0].ID = %s, want strong", ranked[0].Entry.ID)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := cosine(a, b); got != 1 {
		t.Errorf("cosine(identical) = %v, want 1", got)
	}
	c := []float32{0, 1, 0}
	if got := cosine(a, c); got != 0 {
		t.Errorf("cosine(orthogonal) = %v, want 0", got)
	}
	if got := cosine(nil, b); got != 0 {
		t.Errorf("cosine(nil, b) = %v, want 0", got)
	}
}

func TestTFIDFLexicalScoreWeightsRareTermsHigher(t *testing.T) {
	corpus := []*models.MemoryEntry{
		{Content: "apple pie is my favorite dessert"},
		{Content: "banana bread with walnuts"},
		{Content: "apple banana smoothie recipe"},
	}
	idx := buildTFIDFIndex(corpus)

	// "banana" appears in 2 of 3 docs, "pie" in only 1: a one-word match
	// on pie should score higher than a one-word match on banana.
	scoreRare := tfidfLexicalScore(idx, "pie", corpus[0].Content)
	scoreCommon := tfidfLexicalScore(idx, "banana", corpus[1].Content)
	if scoreRare <= 0 || scoreCommon <= 0 {
		t.Fatalf("scoreRare=%v scoreCommon=%v, want both > 0", scoreRare, scoreCommon)
	}
	if scoreRare <= scoreCommon {
		t.Errorf("scoreRare=%v <= scoreCommon=%v, want the rare term weighted higher", scoreRare, scoreCommon)
	}

	identical := tfidfLexicalScore(idx, "apple banana smoothie recipe", corpus[2].Content)
	if identical < 0.99 {
		t.Errorf("tfidfLexicalScore(identical content) = %v, want ~1.0", identical)
	}

	unrelated := tfidfLexicalScore(idx, "apple banana smoothie recipe", corpus[1].Content)
	if unrelated >= identical {
		t.Errorf("unrelated score %v should be less than identical score %v", unrelated, identical)
	}
}

func TestTFIDFLexicalScoreNoOverlapIsZero(t *testing.T) {
	corpus := []*models.MemoryEntry{
		{Content: "apple banana"},
		{Content: "completely different words"},
	}
	idx := buildTFIDFIndex(corpus)
	if got := tfidfLexicalScore(idx, "apple banana", corpus[1].Content); got != 0 {
		t.Errorf("tfidfLexicalScore(no overlap) = %v, want 0", got)
	}
}
