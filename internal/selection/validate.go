package selection

import (
	"fmt"

	"github.com/stemsi/exampool/internal/model"
)

// Check reports every reason the pool cannot serve the configuration, in a
// stable order: overall size, per difficulty, per subject, then per bucket.
// An empty result means Select will succeed for any identity.
func Check(in Input) []string {
	var problems []string

	byDifficulty := make(map[model.Difficulty]int)
	bySubject := make(map[string]int)
	for _, q := range in.Pool {
		byDifficulty[q.Difficulty]++
		bySubject[q.Subject]++
	}

	if len(in.Pool) < in.TotalQuestions {
		problems = append(problems, fmt.Sprintf(
			"pool has %d questions, exam needs %d", len(in.Pool), in.TotalQuestions))
	}

	for _, d := range in.DifficultyDistribution.Difficulties() {
		need := ceilDiv(in.DifficultyDistribution[d]*in.TotalQuestions, 100)
		if have := byDifficulty[d]; have < need {
			problems = append(problems, fmt.Sprintf(
				"difficulty %s: need %d, have %d", d, need, have))
		}
	}

	for _, s := range in.SubjectDistribution.Subjects() {
		need := in.SubjectDistribution[s]
		if have := bySubject[s]; have < need {
			problems = append(problems, fmt.Sprintf(
				"subject %s: need %d, have %d", s, need, have))
		}
	}

	buckets := partition(in.Pool)
	for _, r := range Requirements(in.DifficultyDistribution, in.SubjectDistribution) {
		if have := len(buckets[r.Bucket]); have < r.Required {
			problems = append(problems, "bucket "+Deficiency{
				Difficulty: r.Difficulty,
				Subject:    r.Subject,
				Required:   r.Required,
				Available:  have,
			}.String())
		}
	}

	return problems
}
