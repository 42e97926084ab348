package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrEmptySubmission = errors.New("submission source is empty")

type Submission struct {
	TeamID   int    `json:"team_id"`
	Language string `json:"language"`
	Source   string `json:"source"`
}

type Result struct {
	TeamID             int     `json:"team_id"`
	FunctionalityScore float64 `json:"functionality_score"`
	InnovationScore    float64 `json:"innovation_score"`
	PlagiarismFlag     bool    `json:"plagiarism_flag"`
	AIGeneratedFlag    bool    `json:"ai_generated_flag"`
	Suggestions        string  `json:"suggestions"`
}

// Evaluator scores one team's submission. Implementations must honour ctx:
// a call that outlives its deadline returns ctx.Err() and no result.
type Evaluator interface {
	Evaluate(ctx context.Context, submission Submission) (Result, error)
}

// SimulatedEvaluator stands in for the external code-analysis service. Its
// scores are a pure function of the submission text, so re-evaluating the
// same source yields the same result.
type SimulatedEvaluator struct {
	latency time.Duration
}

func NewSimulatedEvaluator(latency time.Duration) *SimulatedEvaluator {
	return &SimulatedEvaluator{latency: latency}
}

func (e *SimulatedEvaluator) Evaluate(ctx context.Context, submission Submission) (Result, error) {
	if strings.TrimSpace(submission.Source) == "" {
		return Result{}, fmt.Errorf("team %d: %w", submission.TeamID, ErrEmptySubmission)
	}

	if e.latency > 0 {
		timer := time.NewTimer(e.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	sum := sha256.Sum256([]byte(submission.Language + "\x00" + submission.Source))
	functionality := scoreFrom(sum[0:8])
	innovation := scoreFrom(sum[8:16])

	return Result{
		TeamID:             submission.TeamID,
		FunctionalityScore: functionality,
		InnovationScore:    innovation,
		PlagiarismFlag:     sum[16] < 8,
		AIGeneratedFlag:    sum[17] < 16,
		Suggestions:        suggestionsFor(functionality, innovation),
	}, nil
}

// scoreFrom maps eight hash bytes onto 40.00..100.00.
func scoreFrom(b []byte) float64 {
	n := binary.BigEndian.Uint64(b) % 6001
	return 40 + float64(n)/100
}

func suggestionsFor(functionality, innovation float64) string {
	var tips []string
	if functionality < 60 {
		tips = append(tips, "Cover the failing edge cases before adding features.")
	}
	if innovation < 60 {
		tips = append(tips, "Explain what sets the approach apart from a baseline solution.")
	}
	if len(tips) == 0 {
		return "Solid submission; focus the presentation on measurable impact."
	}
	return strings.Join(tips, " ")
}
