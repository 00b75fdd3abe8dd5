// Package scoring grades a submitted attempt and ranks it against earlier
// results of the same exam. All arithmetic is exact decimal.
package scoring

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stemsi/exampool/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Item is one snapshot question joined with its key and the stored response.
type Item struct {
	QuestionID    uuid.UUID
	Subject       string
	CorrectOption string
	Selected      *string
}

// Breakdown is the outcome of grading one attempt.
type Breakdown struct {
	TotalQuestions int
	Attempted      int
	Correct        int
	Wrong          int
	Unattempted    int
	TotalScore     decimal.Decimal
	MaxScore       decimal.Decimal
	Accuracy       decimal.Decimal
	SubjectScores  map[string]decimal.Decimal
	Outcomes       []model.QuestionOutcome
}

// Score grades items under scheme. Unattempted marks count toward the total
// but are not attributed to any subject.
func Score(items []Item, scheme model.MarkingScheme) Breakdown {
	b := Breakdown{
		TotalQuestions: len(items),
		TotalScore:     decimal.Zero,
		SubjectScores:  make(map[string]decimal.Decimal),
	}

	for _, it := range items {
		if it.Selected == nil {
			b.Unattempted++
			continue
		}
		b.Attempted++

		marks := scheme.WrongMarks
		correct := *it.Selected == it.CorrectOption
		if correct {
			b.Correct++
			marks = scheme.CorrectMarks
		} else {
			b.Wrong++
		}

		b.SubjectScores[it.Subject] = b.SubjectScores[it.Subject].Add(marks)
		b.Outcomes = append(b.Outcomes, model.QuestionOutcome{QuestionID: it.QuestionID, Correct: correct})
	}

	b.TotalScore = scheme.CorrectMarks.Mul(decimal.NewFromInt(int64(b.Correct))).
		Add(scheme.WrongMarks.Mul(decimal.NewFromInt(int64(b.Wrong)))).
		Add(scheme.UnattemptedMarks.Mul(decimal.NewFromInt(int64(b.Unattempted))))
	b.MaxScore = scheme.CorrectMarks.Mul(decimal.NewFromInt(int64(b.TotalQuestions)))

	b.Accuracy = decimal.Zero
	if b.Attempted > 0 {
		b.Accuracy = decimal.NewFromInt(int64(b.Correct)).
			Mul(hundred).
			DivRound(decimal.NewFromInt(int64(b.Attempted)), 2)
	}

	return b
}
