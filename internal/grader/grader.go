// Package grader scores a completed quiz set. Selections are option
// indices rather than option text, so two options with identical
// wording grade unambiguously.
package grader

import (
	"errors"
	"fmt"

	"github.com/studyboost/booster/internal/model"
)

// Unanswered marks a quiz slot the user has not selected yet.
const Unanswered = -1

// Tier is the feedback tier chosen from the score rate.
type Tier string

const (
	TierHigh Tier = "high"
	TierMid  Tier = "mid"
	TierLow  Tier = "low"
)

// ErrEmptyQuizSet is returned when there is nothing to grade.
var ErrEmptyQuizSet = errors.New("cannot grade an empty quiz set")

// IncompleteError reports that grading was attempted before every
// question had a selection.
type IncompleteError struct {
	Answered int
	Total    int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("quiz incomplete: %d of %d questions answered", e.Answered, e.Total)
}

// Result is the outcome of grading one fully-answered quiz set.
type Result struct {
	Correct int
	Total   int
	Rate    float64 // 100 * correct / total, unrounded
	Tier    Tier
}

// DisplayScore renders the rate as the stored percentage string.
// Display rounds; tier selection never does.
func (r Result) DisplayScore() string {
	return fmt.Sprintf("%.0f%%", r.Rate)
}

// Grade scores the quiz set against the user's selected option
// indices. Every slot must hold a valid selection; selections must be
// parallel to quizzes. Grading the same inputs twice yields the same
// result.
func Grade(quizzes []model.Quiz, selections []int) (Result, error) {
	if len(quizzes) == 0 {
		return Result{}, ErrEmptyQuizSet
	}
	if len(selections) != len(quizzes) {
		return Result{}, fmt.Errorf("got %d selections for %d questions", len(selections), len(quizzes))
	}

	answered := 0
	for i, sel := range selections {
		if sel == Unanswered {
			continue
		}
		if sel < 0 || sel >= len(quizzes[i].Options) {
			return Result{}, fmt.Errorf("selection %d out of range for question %d", sel, i+1)
		}
		answered++
	}
	if answered < len(quizzes) {
		return Result{}, &IncompleteError{Answered: answered, Total: len(quizzes)}
	}

	correct := 0
	for i, q := range quizzes {
		if selections[i] == q.Answer {
			correct++
		}
	}

	rate := 100 * float64(correct) / float64(len(quizzes))
	return Result{
		Correct: correct,
		Total:   len(quizzes),
		Rate:    rate,
		Tier:    TierFor(rate),
	}, nil
}

// TierFor maps an unrounded rate to a feedback tier: a perfect score
// is high, at least half is mid, anything below is low.
func TierFor(rate float64) Tier {
	switch {
	case rate == 100:
		return TierHigh
	case rate >= 50:
		return TierMid
	default:
		return TierLow
	}
}

// FeedbackFor returns the boost comment matching a tier.
func FeedbackFor(set model.FeedbackSet, tier Tier) model.FeedbackComment {
	switch tier {
	case TierHigh:
		return set.High
	case TierMid:
		return set.Mid
	default:
		return set.Low
	}
}
