package services

import (
	"context"
	"math"
	"strings"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

// UnitMatch is the outcome of classifying one question against a course's
// syllabus units. A nil UnitID means no unit cleared the confidence floor
// and the question needs manual review.
type UnitMatch struct {
	UnitID     *uint
	UnitName   string
	Confidence float64
	TopicTags  []string
}

// Classifier assigns a syllabus unit to a question
type Classifier interface {
	Classify(ctx context.Context, questionText string, units []model.CourseUnit) UnitMatch
}

// classificationThreshold is the minimum cosine similarity for a unit
// assignment. Scores at or below the threshold are rejected.
const classificationThreshold = 0.3

// clearsThreshold is the acceptance rule for a unit assignment: strictly
// above the threshold, so a score exactly at the cutoff is rejected
func clearsThreshold(score float64) bool {
	return score > classificationThreshold
}

// UnitClassifier matches questions to syllabus units with TF-IDF over word
// n-grams (1-3) and cosine similarity. Unit documents are built from the
// unit name plus its topic strings.
type UnitClassifier struct{}

// NewUnitClassifier creates a new TF-IDF unit classifier
func NewUnitClassifier() *UnitClassifier {
	return &UnitClassifier{}
}

var classifierStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true, "is": true,
	"are": true, "was": true, "be": true, "by": true, "as": true, "at": true,
	"it": true, "its": true, "that": true, "this": true, "what": true,
	"which": true, "how": true, "why": true, "when": true, "do": true,
	"does": true, "can": true, "will": true, "any": true, "all": true,
}

// Classify returns the best-matching unit for a question, or an empty match
// when no unit scores strictly above the threshold. Ties break toward the
// unit that appears earliest in the given slice.
func (c *UnitClassifier) Classify(_ context.Context, questionText string, units []model.CourseUnit) UnitMatch {
	if len(units) == 0 || strings.TrimSpace(questionText) == "" {
		return UnitMatch{}
	}

	// Unit documents first, question document last; IDF is computed over
	// the whole set so rare syllabus terms carry more weight.
	docs := make([][]string, 0, len(units)+1)
	for i := range units {
		docs = append(docs, tokenizeNgrams(unitDocument(&units[i])))
	}
	questionTerms := tokenizeNgrams(questionText)
	docs = append(docs, questionTerms)

	idf := inverseDocumentFrequency(docs)
	questionVec := tfidfVector(questionTerms, idf)

	bestIdx := -1
	bestScore := 0.0
	for i := range units {
		score := cosineSimilarity(questionVec, tfidfVector(docs[i], idf))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || !clearsThreshold(bestScore) {
		return UnitMatch{Confidence: bestScore}
	}

	matched := units[bestIdx]
	return UnitMatch{
		UnitID:     &matched.ID,
		UnitName:   matched.Name,
		Confidence: bestScore,
		TopicTags:  matchTopics(questionText, matched.TopicList()),
	}
}

// unitDocument builds the text the unit is represented by: its name plus
// every topic string
func unitDocument(unit *model.CourseUnit) string {
	parts := append([]string{unit.Name}, unit.TopicList()...)
	return strings.Join(parts, " ")
}

// matchTopics returns the unit topics whose words appear in the question
// text. Tags are always exact topic strings from the syllabus.
func matchTopics(questionText string, topics []string) []string {
	textLower := strings.ToLower(questionText)

	var tags []string
	for _, topic := range topics {
		topicLower := strings.ToLower(topic)
		if strings.Contains(textLower, topicLower) {
			tags = append(tags, topic)
			continue
		}
		// Partial match: more than half of the topic's words occur in
		// the question
		words := strings.Fields(topicLower)
		hits := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(textLower, w) {
				hits++
			}
		}
		if len(words) > 0 && hits*2 > len(words) {
			tags = append(tags, topic)
		}
	}
	return tags
}

// tokenizeNgrams lowercases, strips punctuation, removes stop words, and
// emits word n-grams of size 1 to 3
func tokenizeNgrams(text string) []string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}

	fields := strings.Fields(sb.String())
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if !classifierStopWords[w] {
			words = append(words, w)
		}
	}

	terms := make([]string, 0, len(words)*3)
	for n := 1; n <= 3; n++ {
		for i := 0; i+n <= len(words); i++ {
			terms = append(terms, strings.Join(words[i:i+n], " "))
		}
	}
	return terms
}

// inverseDocumentFrequency computes smoothed IDF weights over the documents
func inverseDocumentFrequency(docs [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool, len(doc))
		for _, term := range doc {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}
	return idf
}

// tfidfVector builds a term frequency vector weighted by IDF
func tfidfVector(terms []string, idf map[string]float64) map[string]float64 {
	if len(terms) == 0 {
		return nil
	}

	tf := make(map[string]float64)
	for _, term := range terms {
		tf[term]++
	}

	vec := make(map[string]float64, len(tf))
	for term, count := range tf {
		vec[term] = (count / float64(len(terms))) * idf[term]
	}
	return vec
}

// cosineSimilarity computes the cosine of two sparse vectors
func cosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate over the smaller vector
	if len(b) < len(a) {
		a, b = b, a
	}

	dot := 0.0
	for term, av := range a {
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	if dot == 0 {
		return 0
	}

	return dot / (vectorNorm(a) * vectorNorm(b))
}

func vectorNorm(vec map[string]float64) float64 {
	sum := 0.0
	for _, v := range vec {
		sum += v * v
	}
	return math.Sqrt(sum)
}
