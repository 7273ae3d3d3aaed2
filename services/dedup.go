package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
	"github.com/sahilchouksey/qbank-pipeline/utils/cache"
)

const (
	// DedupModeEmbedding compares new questions against the course's
	// canonical set via embedding similarity
	DedupModeEmbedding = "embedding"
	// DedupModeIntake accepts every question as canonical and defers
	// duplicate detection to review
	DedupModeIntake = "intake"

	// duplicateThreshold marks a question as a duplicate when its cosine
	// similarity to a canonical question reaches this value
	duplicateThreshold = 0.85

	courseLockTTL   = 30 * time.Minute
	courseLockRetry = 2 * time.Second
)

// Embedder produces vector embeddings for texts. Satisfied by
// digitalocean.InferenceClient.
type Embedder interface {
	CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float64, error)
}

// DedupDecision records the duplicate verdict for one question in a batch.
// Exactly one of ParentQuestionID (existing canonical) or ParentIndex
// (earlier question in the same batch, resolved after insert) is set for
// duplicates.
type DedupDecision struct {
	IsCanonical      bool
	ParentQuestionID *uint
	ParentIndex      *int
	SimilarityScore  *float64
}

// DuplicateResolver decides which questions in a batch are canonical and
// which duplicate an already-known question of the same course.
type DuplicateResolver struct {
	db             *gorm.DB
	embedder       Embedder
	cache          *cache.RedisCache
	mode           string
	embeddingModel string
}

// NewDuplicateResolver creates a duplicate resolver. cache may be nil, in
// which case course locking is skipped.
func NewDuplicateResolver(db *gorm.DB, embedder Embedder, redisCache *cache.RedisCache, mode, embeddingModel string) *DuplicateResolver {
	if mode == "" {
		mode = DedupModeEmbedding
	}
	return &DuplicateResolver{
		db:             db,
		embedder:       embedder,
		cache:          redisCache,
		mode:           mode,
		embeddingModel: embeddingModel,
	}
}

// LockCourse acquires the per-course dedup lock so concurrent runs for the
// same course serialize. Returns an error when the lock cannot be acquired
// before the context deadline.
func (r *DuplicateResolver) LockCourse(ctx context.Context, courseID uint) error {
	if r.cache == nil {
		return nil
	}

	key := fmt.Sprintf("dedup:lock:course:%d", courseID)
	for {
		acquired, err := r.cache.SetNX(ctx, key, time.Now().Unix(), courseLockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire course lock: %w", err)
		}
		if acquired {
			return nil
		}

		log.Printf("Duplicate Resolver: Course %d locked by another run, waiting", courseID)
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for course %d lock: %w", courseID, ctx.Err())
		case <-time.After(courseLockRetry):
		}
	}
}

// UnlockCourse releases the per-course dedup lock
func (r *DuplicateResolver) UnlockCourse(ctx context.Context, courseID uint) {
	if r.cache == nil {
		return
	}
	key := fmt.Sprintf("dedup:lock:course:%d", courseID)
	if err := r.cache.Delete(ctx, key); err != nil {
		log.Printf("Duplicate Resolver: Failed to release course %d lock: %v", courseID, err)
	}
}

// Resolve returns one decision per question text, in order. In intake mode
// every question is canonical. In embedding mode each question is compared
// against the course's existing canonical questions and against earlier
// canonical questions of the same batch.
func (r *DuplicateResolver) Resolve(ctx context.Context, courseID uint, texts []string) ([]DedupDecision, error) {
	decisions := make([]DedupDecision, len(texts))
	for i := range decisions {
		decisions[i].IsCanonical = true
	}
	if len(texts) == 0 || r.mode == DedupModeIntake {
		return decisions, nil
	}

	var existing []model.Question
	if err := r.db.Where("course_id = ? AND is_canonical = ?", courseID, true).
		Order("id ASC").Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load canonical questions: %w", err)
	}

	inputs := make([]string, 0, len(texts)+len(existing))
	inputs = append(inputs, texts...)
	for _, q := range existing {
		inputs = append(inputs, q.Text)
	}

	vectors, err := r.embedder.CreateEmbeddings(ctx, r.embeddingModel, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to embed questions for dedup: %w", err)
	}

	newVecs := vectors[:len(texts)]
	existingVecs := vectors[len(texts):]

	for i := range texts {
		best := 0.0
		var parentID *uint
		var parentIdx *int

		for j := range existing {
			score := cosineFloat64(newVecs[i], existingVecs[j])
			if score > best {
				best = score
				id := existing[j].ID
				parentID = &id
				parentIdx = nil
			}
		}

		// Earlier canonical members of this batch are candidates too
		for j := 0; j < i; j++ {
			if !decisions[j].IsCanonical {
				continue
			}
			score := cosineFloat64(newVecs[i], newVecs[j])
			if score > best {
				best = score
				idx := j
				parentIdx = &idx
				parentID = nil
			}
		}

		if isDuplicate(best) {
			score := best
			decisions[i] = DedupDecision{
				IsCanonical:      false,
				ParentQuestionID: parentID,
				ParentIndex:      parentIdx,
				SimilarityScore:  &score,
			}
		}
	}

	return decisions, nil
}

// isDuplicate is the duplicate rule: a similarity exactly at the threshold
// already counts as a duplicate
func isDuplicate(score float64) bool {
	return score >= duplicateThreshold
}

// cosineFloat64 computes cosine similarity of two dense vectors
func cosineFloat64(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	dot, normA, normB := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
