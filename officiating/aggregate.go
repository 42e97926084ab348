package officiating

import (
	"errors"
	"fmt"
	"math"

	"github.com/Dosada05/coding-league/models"
)

var (
	ErrNoLockedScores    = errors.New("no locked judge scores for match")
	ErrTeamWithoutScores = errors.New("team has no locked judge scores")
)

// tieEpsilon is the distance under which two means are treated as equal.
const tieEpsilon = 1e-9

// ScoreWeights are the per-criterion weights of a judge's team score.
// They are part of the competition contract and must sum to 1.
type ScoreWeights struct {
	CodeFunctionality float64 `json:"code_functionality"`
	Innovation        float64 `json:"innovation"`
	Presentation      float64 `json:"presentation"`
	ProblemRelevance  float64 `json:"problem_relevance"`
	Feasibility       float64 `json:"feasibility"`
	Collaboration     float64 `json:"collaboration"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		CodeFunctionality: 0.25,
		Innovation:        0.25,
		Presentation:      0.15,
		ProblemRelevance:  0.20,
		Feasibility:       0.10,
		Collaboration:     0.05,
	}
}

func (w ScoreWeights) Validate() error {
	sum := 0.0
	for _, v := range []float64{w.CodeFunctionality, w.Innovation, w.Presentation, w.ProblemRelevance, w.Feasibility, w.Collaboration} {
		if v < 0 {
			return fmt.Errorf("score weights must be non-negative, got %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("score weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// WeightedTotal applies w to one judge's criteria.
func (w ScoreWeights) WeightedTotal(c models.Criteria) float64 {
	return w.CodeFunctionality*c.CodeFunctionality +
		w.Innovation*c.Innovation +
		w.Presentation*c.Presentation +
		w.ProblemRelevance*c.ProblemRelevance +
		w.Feasibility*c.Feasibility +
		w.Collaboration*c.Collaboration
}

// Outcome is the aggregated verdict for a two-team match.
type Outcome struct {
	HomeMean   float64
	AwayMean   float64
	HomeJudges int
	AwayJudges int
	WinnerID   *int
	Draw       bool
	// TieBroken is set when equal means were split by auto-score functionality.
	TieBroken bool
}

func (o Outcome) HomeRounded() int { return int(math.Round(o.HomeMean)) }
func (o Outcome) AwayRounded() int { return int(math.Round(o.AwayMean)) }

// Aggregate averages the weighted totals of locked judge scores per team and
// picks a winner. Unlocked scores and scores for other teams are ignored.
//
// Equal means are broken by the higher auto-score functionality; when that is
// missing or also equal the match is a draw.
func Aggregate(w ScoreWeights, homeTeamID, awayTeamID int, scores []models.JudgeScore, autoScores map[int]models.AutoScore) (Outcome, error) {
	var (
		sums   = map[int]float64{}
		counts = map[int]int{}
		locked int
	)
	for _, s := range scores {
		if !s.IsLocked {
			continue
		}
		if s.TeamID != homeTeamID && s.TeamID != awayTeamID {
			continue
		}
		locked++
		sums[s.TeamID] += w.WeightedTotal(s.Criteria)
		counts[s.TeamID]++
	}
	if locked == 0 {
		return Outcome{}, ErrNoLockedScores
	}
	for _, teamID := range []int{homeTeamID, awayTeamID} {
		if counts[teamID] == 0 {
			return Outcome{}, fmt.Errorf("%w: team %d", ErrTeamWithoutScores, teamID)
		}
	}

	out := Outcome{
		HomeMean:   sums[homeTeamID] / float64(counts[homeTeamID]),
		AwayMean:   sums[awayTeamID] / float64(counts[awayTeamID]),
		HomeJudges: counts[homeTeamID],
		AwayJudges: counts[awayTeamID],
	}

	switch {
	case out.HomeMean-out.AwayMean > tieEpsilon:
		out.WinnerID = intPtr(homeTeamID)
	case out.AwayMean-out.HomeMean > tieEpsilon:
		out.WinnerID = intPtr(awayTeamID)
	default:
		out.WinnerID = breakTie(homeTeamID, awayTeamID, autoScores)
		out.TieBroken = out.WinnerID != nil
		out.Draw = out.WinnerID == nil
	}
	return out, nil
}

func breakTie(homeTeamID, awayTeamID int, autoScores map[int]models.AutoScore) *int {
	home, okHome := autoScores[homeTeamID]
	away, okAway := autoScores[awayTeamID]
	if !okHome || !okAway {
		return nil
	}
	switch {
	case home.FunctionalityScore-away.FunctionalityScore > tieEpsilon:
		return intPtr(homeTeamID)
	case away.FunctionalityScore-home.FunctionalityScore > tieEpsilon:
		return intPtr(awayTeamID)
	}
	return nil
}

func intPtr(v int) *int {
	return &v
}
