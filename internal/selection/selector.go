// Package selection draws a reproducible, stratified question subset for an
// attempt. Output depends only on the inputs, never on wall clock or on the
// order the pool was read from storage.
package selection

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/exampool/internal/model"
)

const finalLabel = "final"

// Input is everything a selection depends on.
type Input struct {
	ExamID                 uuid.UUID
	UserID                 string
	AttemptNumber          int
	TotalQuestions         int
	DifficultyDistribution model.DifficultyDistribution
	SubjectDistribution    model.SubjectDistribution
	Pool                   []model.PoolQuestion
}

// Bucket is one (difficulty, subject) stratum.
type Bucket struct {
	Difficulty model.Difficulty
	Subject    string
}

func (b Bucket) label() string {
	return string(b.Difficulty) + "|" + b.Subject
}

func (b Bucket) less(o Bucket) bool {
	if b.Difficulty != o.Difficulty {
		return b.Difficulty < o.Difficulty
	}
	return b.Subject < o.Subject
}

// Deficiency describes a bucket that holds fewer questions than required.
type Deficiency struct {
	Difficulty model.Difficulty `json:"difficulty"`
	Subject    string           `json:"subject"`
	Required   int              `json:"required"`
	Available  int              `json:"available"`
}

func (d Deficiency) String() string {
	return fmt.Sprintf("%s/%s: need %d, have %d", d.Difficulty, d.Subject, d.Required, d.Available)
}

// InsufficientPoolError lists every deficient bucket.
type InsufficientPoolError struct {
	Deficiencies []Deficiency
}

func (e *InsufficientPoolError) Error() string {
	parts := make([]string, len(e.Deficiencies))
	for i, d := range e.Deficiencies {
		parts[i] = d.String()
	}
	return "insufficient question pool: " + strings.Join(parts, "; ")
}

// Requirement is the number of questions a bucket must contribute.
type Requirement struct {
	Bucket
	Required int
}

// Requirements combines the two distributions into per-bucket counts:
// ceil(pct(d) * count(s) / 100). Result is ordered by difficulty then subject.
func Requirements(diff model.DifficultyDistribution, subj model.SubjectDistribution) []Requirement {
	reqs := make([]Requirement, 0, len(diff)*len(subj))
	for _, d := range diff.Difficulties() {
		pct := diff[d]
		for _, s := range subj.Subjects() {
			n := ceilDiv(pct*subj[s], 100)
			if n == 0 {
				continue
			}
			reqs = append(reqs, Requirement{Bucket: Bucket{Difficulty: d, Subject: s}, Required: n})
		}
	}
	return reqs
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Seed derives the selection seed from the attempt identity.
func Seed(examID uuid.UUID, userID string, attemptNumber int) [sha256.Size]byte {
	return sha256.Sum256([]byte(examID.String() + ":" + userID + ":" + strconv.Itoa(attemptNumber)))
}

// Select returns the ordered snapshot for in, or *InsufficientPoolError.
func Select(in Input) ([]uuid.UUID, error) {
	if in.TotalQuestions < 1 {
		return nil, fmt.Errorf("total questions must be positive, got %d", in.TotalQuestions)
	}

	reqs := Requirements(in.DifficultyDistribution, in.SubjectDistribution)
	buckets := partition(in.Pool)

	var deficient []Deficiency
	for _, r := range reqs {
		if have := len(buckets[r.Bucket]); have < r.Required {
			deficient = append(deficient, Deficiency{
				Difficulty: r.Difficulty,
				Subject:    r.Subject,
				Required:   r.Required,
				Available:  have,
			})
		}
	}
	if len(deficient) > 0 {
		return nil, &InsufficientPoolError{Deficiencies: deficient}
	}

	seed := Seed(in.ExamID, in.UserID, in.AttemptNumber)

	total := 0
	for _, r := range reqs {
		total += r.Required
	}
	picked := make([]uuid.UUID, 0, total)
	for _, r := range reqs {
		ids := append([]uuid.UUID(nil), buckets[r.Bucket]...)
		shuffle(ids, seed, r.label())
		picked = append(picked, ids[:r.Required]...)
	}

	shuffle(picked, seed, finalLabel)

	if len(picked) > in.TotalQuestions {
		picked = picked[:in.TotalQuestions]
	}
	return picked, nil
}

// partition sorts the pool by id and splits it into buckets in one pass.
// Each bucket keeps ascending id order.
func partition(pool []model.PoolQuestion) map[Bucket][]uuid.UUID {
	sorted := append([]model.PoolQuestion(nil), pool...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0
	})

	buckets := make(map[Bucket][]uuid.UUID)
	var prev uuid.UUID
	for i, q := range sorted {
		if i > 0 && q.ID == prev {
			continue
		}
		prev = q.ID
		b := Bucket{Difficulty: q.Difficulty, Subject: q.Subject}
		buckets[b] = append(buckets[b], q.ID)
	}
	return buckets
}

// shuffle is a Fisher-Yates pass driven by sha256(seed|label|i).
func shuffle(ids []uuid.UUID, seed [sha256.Size]byte, label string) {
	for i := len(ids) - 1; i > 0; i-- {
		j := int(randomAt(seed, label, i) % uint64(i+1))
		ids[i], ids[j] = ids[j], ids[i]
	}
}

func randomAt(seed [sha256.Size]byte, label string, i int) uint64 {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte("|" + label + "|" + strconv.Itoa(i)))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}
