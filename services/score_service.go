package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/coding-league/evaluation"
	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/repositories"
	"golang.org/x/sync/errgroup"
)

var (
	judgeCriteriaNames  = []string{"code_functionality", "innovation", "presentation", "problem_relevance", "feasibility", "collaboration"}
	playerCriteriaNames = []string{"role_performance", "initiative", "technical_mastery", "creativity", "collaboration"}
	autoScoreNames      = []string{"functionality_score", "innovation_score"}
)

type JudgeScoreInput struct {
	TeamID   int             `json:"team_id"`
	Criteria models.Criteria `json:"criteria"`
	Comments string          `json:"comments"`
}

type PlayerScoreInput struct {
	PlayerID int                   `json:"player_id"`
	Criteria models.PlayerCriteria `json:"criteria"`
	Notes    string                `json:"notes"`
}

type AutoScoreInput struct {
	TeamID             int     `json:"team_id"`
	FunctionalityScore float64 `json:"functionality_score"`
	InnovationScore    float64 `json:"innovation_score"`
	PlagiarismFlag     bool    `json:"plagiarism_flag"`
	AIGeneratedFlag    bool    `json:"ai_generated_flag"`
	Suggestions        string  `json:"suggestions"`
}

type FeedbackInput struct {
	TeamID   *int   `json:"team_id,omitempty"`
	PlayerID *int   `json:"player_id,omitempty"`
	Message  string `json:"message"`
	IsPublic bool   `json:"is_public"`
}

// ScoreBoard is the full score state of one match.
type ScoreBoard struct {
	MatchID      int                     `json:"match_id"`
	JudgeScores  []models.JudgeScore     `json:"judge_scores"`
	PlayerScores []models.PlayerScore    `json:"player_scores"`
	AutoScores   []models.AutoScore      `json:"auto_scores"`
	Feedback     []*models.MatchFeedback `json:"feedback"`
}

type ScoreService interface {
	SubmitJudgeScore(ctx context.Context, actor models.Actor, matchID int, in JudgeScoreInput) (*models.JudgeScore, error)
	// LockJudgeScore makes the caller's score for one team immutable.
	// Locking an already locked score changes nothing.
	LockJudgeScore(ctx context.Context, actor models.Actor, matchID, teamID int) (*models.JudgeScore, error)
	SubmitPlayerScore(ctx context.Context, actor models.Actor, matchID int, in PlayerScoreInput) (*models.PlayerScore, error)
	SubmitAutoScore(ctx context.Context, actor models.Actor, matchID int, in AutoScoreInput) (*models.AutoScore, error)
	// RunAutoEvaluation evaluates both teams within the configured budget.
	// Nothing is written unless both evaluations succeed.
	RunAutoEvaluation(ctx context.Context, actor models.Actor, matchID int, submissions []evaluation.Submission) ([]models.AutoScore, error)
	AddFeedback(ctx context.Context, actor models.Actor, matchID int, in FeedbackInput) (*models.MatchFeedback, error)

	ListJudgeScores(ctx context.Context, matchID int) ([]models.JudgeScore, error)
	ListPlayerScores(ctx context.Context, matchID int) ([]models.PlayerScore, error)
	// ListFeedback returns private entries only to admins and accepted judges.
	ListFeedback(ctx context.Context, actor models.Actor, matchID int) ([]*models.MatchFeedback, error)
	Board(ctx context.Context, actor models.Actor, matchID int) (*ScoreBoard, error)
}

type scoreService struct {
	base
	evaluator   evaluation.Evaluator
	evalTimeout time.Duration
}

func NewScoreService(deps Dependencies, evaluator evaluation.Evaluator, evalTimeout time.Duration) ScoreService {
	return &scoreService{
		base:        newBase(deps, "score"),
		evaluator:   evaluator,
		evalTimeout: evalTimeout,
	}
}

type liveScorePayload struct {
	MatchID int         `json:"match_id"`
	Kind    string      `json:"kind"`
	Score   interface{} `json:"score"`
}

// officiate runs fn in a transaction after checking that the match still
// takes writes and that the caller is an accepted judge.
func (s *scoreService) officiate(ctx context.Context, actor models.Actor, matchID int, fn func(exec repositories.SQLExecutor, match *models.Match) error) error {
	return s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.openMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if _, err := s.requireAcceptedJudge(ctx, exec, matchID, actor); err != nil {
			return err
		}
		return fn(exec, match)
	})
}

func (s *scoreService) SubmitJudgeScore(ctx context.Context, actor models.Actor, matchID int, in JudgeScoreInput) (*models.JudgeScore, error) {
	if err := validateScores(judgeCriteriaNames, in.Criteria.Values()); err != nil {
		return nil, s.finish(ctx, "score.judge", err)
	}

	score := &models.JudgeScore{
		MatchID:  matchID,
		JudgeID:  actor.UserID,
		TeamID:   in.TeamID,
		Criteria: in.Criteria,
		Comments: in.Comments,
	}
	err := s.officiate(ctx, actor, matchID, func(exec repositories.SQLExecutor, match *models.Match) error {
		if !match.HasTeam(in.TeamID) {
			return ErrTeamNotInMatch
		}
		return s.store.Scores.UpsertJudgeScore(ctx, exec, score)
	})
	if err = s.finish(ctx, "score.judge", err); err != nil {
		return nil, err
	}

	s.notify(ctx, live.MatchChannel(matchID), "score.live", liveScorePayload{MatchID: matchID, Kind: "judge", Score: score})
	return score, nil
}

func (s *scoreService) LockJudgeScore(ctx context.Context, actor models.Actor, matchID, teamID int) (*models.JudgeScore, error) {
	var score *models.JudgeScore
	err := s.officiate(ctx, actor, matchID, func(exec repositories.SQLExecutor, match *models.Match) error {
		if !match.HasTeam(teamID) {
			return ErrTeamNotInMatch
		}
		var err error
		score, err = s.store.Scores.LockJudgeScore(ctx, exec, matchID, actor.UserID, teamID, s.now())
		return err
	})
	if err = s.finish(ctx, "score.lock", err); err != nil {
		return nil, err
	}

	s.notify(ctx, live.MatchChannel(matchID), "score.live", liveScorePayload{MatchID: matchID, Kind: "judge", Score: score})
	return score, nil
}

func (s *scoreService) SubmitPlayerScore(ctx context.Context, actor models.Actor, matchID int, in PlayerScoreInput) (*models.PlayerScore, error) {
	if err := validateScores(playerCriteriaNames, in.Criteria.Values()); err != nil {
		return nil, s.finish(ctx, "score.player", err)
	}

	score := &models.PlayerScore{
		MatchID:        matchID,
		JudgeID:        actor.UserID,
		PlayerID:       in.PlayerID,
		PlayerCriteria: in.Criteria,
		Notes:          in.Notes,
	}
	err := s.officiate(ctx, actor, matchID, func(exec repositories.SQLExecutor, _ *models.Match) error {
		approved, err := s.store.Lineups.IsPlayerApproved(ctx, exec, matchID, in.PlayerID)
		if err != nil {
			return err
		}
		if !approved {
			return fmt.Errorf("%w: player %d", ErrPlayerNotInLineup, in.PlayerID)
		}
		return s.store.Scores.UpsertPlayerScore(ctx, exec, score)
	})
	if err = s.finish(ctx, "score.player", err); err != nil {
		return nil, err
	}

	s.notify(ctx, live.MatchChannel(matchID), "score.live", liveScorePayload{MatchID: matchID, Kind: "player", Score: score})
	return score, nil
}

func (s *scoreService) SubmitAutoScore(ctx context.Context, actor models.Actor, matchID int, in AutoScoreInput) (*models.AutoScore, error) {
	if err := validateScores(autoScoreNames, []float64{in.FunctionalityScore, in.InnovationScore}); err != nil {
		return nil, s.finish(ctx, "score.auto", err)
	}

	score := &models.AutoScore{
		MatchID:            matchID,
		TeamID:             in.TeamID,
		FunctionalityScore: in.FunctionalityScore,
		InnovationScore:    in.InnovationScore,
		PlagiarismFlag:     in.PlagiarismFlag,
		AIGeneratedFlag:    in.AIGeneratedFlag,
		Suggestions:        in.Suggestions,
		EvaluatedAt:        s.now(),
	}
	err := s.officiate(ctx, actor, matchID, func(exec repositories.SQLExecutor, match *models.Match) error {
		if !match.HasTeam(in.TeamID) {
			return ErrTeamNotInMatch
		}
		return s.store.Scores.UpsertAutoScore(ctx, exec, score)
	})
	if err = s.finish(ctx, "score.auto", err); err != nil {
		return nil, err
	}

	s.notifyAutoScores(ctx, matchID, []models.AutoScore{*score})
	return score, nil
}

func (s *scoreService) notifyAutoScores(ctx context.Context, matchID int, scores []models.AutoScore) {
	channel := live.MatchChannel(matchID)
	for i := range scores {
		s.notify(ctx, channel, "score.live", liveScorePayload{MatchID: matchID, Kind: "auto", Score: scores[i]})
	}
	s.notify(ctx, channel, "ai_evaluation.ready", struct {
		MatchID int                `json:"match_id"`
		Scores  []models.AutoScore `json:"scores"`
	}{matchID, scores})
}

func (s *scoreService) RunAutoEvaluation(ctx context.Context, actor models.Actor, matchID int, submissions []evaluation.Submission) ([]models.AutoScore, error) {
	match, err := s.openMatch(ctx, nil, matchID)
	if err != nil {
		return nil, s.finish(ctx, "score.evaluate", err)
	}
	if _, err := s.requireAcceptedJudge(ctx, nil, matchID, actor); err != nil {
		return nil, s.finish(ctx, "score.evaluate", err)
	}
	if err := checkSubmissions(match, submissions); err != nil {
		return nil, s.finish(ctx, "score.evaluate", err)
	}

	results, err := s.evaluate(ctx, submissions)
	if err != nil {
		s.logger.WarnContext(ctx, "Automated evaluation failed", "match_id", matchID, "error", err)
		return nil, s.finish(ctx, "score.evaluate", fmt.Errorf("%w: %v", ErrEvaluationFailed, err))
	}

	now := s.now()
	scores := make([]models.AutoScore, len(results))
	err = s.officiate(ctx, actor, matchID, func(exec repositories.SQLExecutor, _ *models.Match) error {
		for i, r := range results {
			scores[i] = models.AutoScore{
				MatchID:            matchID,
				TeamID:             r.TeamID,
				FunctionalityScore: r.FunctionalityScore,
				InnovationScore:    r.InnovationScore,
				PlagiarismFlag:     r.PlagiarismFlag,
				AIGeneratedFlag:    r.AIGeneratedFlag,
				Suggestions:        r.Suggestions,
				EvaluatedAt:        now,
			}
			if err := s.store.Scores.UpsertAutoScore(ctx, exec, &scores[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err = s.finish(ctx, "score.evaluate", err); err != nil {
		return nil, err
	}

	s.notifyAutoScores(ctx, matchID, scores)
	return scores, nil
}

// checkSubmissions requires exactly one submission per team of the match.
func checkSubmissions(match *models.Match, submissions []evaluation.Submission) error {
	if len(submissions) != 2 {
		return &ValidationError{Field: "submissions", Reason: "one submission per team is required"}
	}
	seen := map[int]bool{}
	for _, sub := range submissions {
		if !match.HasTeam(sub.TeamID) {
			return fmt.Errorf("%w: team %d", ErrTeamNotInMatch, sub.TeamID)
		}
		if seen[sub.TeamID] {
			return &ValidationError{Field: "submissions", Reason: fmt.Sprintf("team %d submitted twice", sub.TeamID)}
		}
		seen[sub.TeamID] = true
	}
	return nil
}

func (s *scoreService) evaluate(ctx context.Context, submissions []evaluation.Submission) ([]evaluation.Result, error) {
	started := time.Now()
	defer func() { s.metrics.AIEvaluation(time.Since(started)) }()

	evalCtx, cancel := context.WithTimeout(ctx, s.evalTimeout)
	defer cancel()

	results := make([]evaluation.Result, len(submissions))
	g, gctx := errgroup.WithContext(evalCtx)
	for i, sub := range submissions {
		i, sub := i, sub
		g.Go(func() error {
			res, err := s.evaluator.Evaluate(gctx, sub)
			if err != nil {
				return fmt.Errorf("team %d: %w", sub.TeamID, err)
			}
			res.TeamID = sub.TeamID
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, r := range results {
		if err := validateScores(autoScoreNames, []float64{r.FunctionalityScore, r.InnovationScore}); err != nil {
			return nil, fmt.Errorf("team %d: %w", r.TeamID, err)
		}
	}
	return results, nil
}

func (s *scoreService) AddFeedback(ctx context.Context, actor models.Actor, matchID int, in FeedbackInput) (*models.MatchFeedback, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, s.finish(ctx, "score.feedback", &ValidationError{Field: "message", Reason: "must not be empty"})
	}

	feedback := &models.MatchFeedback{
		MatchID:  matchID,
		JudgeID:  actor.UserID,
		TeamID:   in.TeamID,
		PlayerID: in.PlayerID,
		Message:  message,
		IsPublic: in.IsPublic,
	}
	err := s.officiate(ctx, actor, matchID, func(exec repositories.SQLExecutor, match *models.Match) error {
		if in.TeamID != nil && !match.HasTeam(*in.TeamID) {
			return ErrTeamNotInMatch
		}
		return s.store.Feedback.Create(ctx, exec, feedback)
	})
	if err = s.finish(ctx, "score.feedback", err); err != nil {
		return nil, err
	}

	if feedback.IsPublic {
		s.notify(ctx, live.MatchChannel(matchID), "score.live", liveScorePayload{MatchID: matchID, Kind: "feedback", Score: feedback})
	}
	return feedback, nil
}

func (s *scoreService) ListJudgeScores(ctx context.Context, matchID int) ([]models.JudgeScore, error) {
	if _, err := s.store.Matches.GetByID(ctx, nil, matchID); err != nil {
		return nil, s.finish(ctx, "score.list", err)
	}
	scores, err := s.store.Scores.ListJudgeScores(ctx, nil, matchID, false)
	if err != nil {
		return nil, s.finish(ctx, "score.list", err)
	}
	return scores, nil
}

func (s *scoreService) ListPlayerScores(ctx context.Context, matchID int) ([]models.PlayerScore, error) {
	if _, err := s.store.Matches.GetByID(ctx, nil, matchID); err != nil {
		return nil, s.finish(ctx, "score.list", err)
	}
	scores, err := s.store.Scores.ListPlayerScores(ctx, nil, matchID)
	if err != nil {
		return nil, s.finish(ctx, "score.list", err)
	}
	return scores, nil
}

func (s *scoreService) ListFeedback(ctx context.Context, actor models.Actor, matchID int) ([]*models.MatchFeedback, error) {
	if _, err := s.store.Matches.GetByID(ctx, nil, matchID); err != nil {
		return nil, s.finish(ctx, "score.list", err)
	}
	publicOnly := !actor.IsAdmin()
	if publicOnly && actor.UserID > 0 {
		if _, err := s.requireAcceptedJudge(ctx, nil, matchID, actor); err == nil {
			publicOnly = false
		}
	}
	feedback, err := s.store.Feedback.ListByMatch(ctx, nil, matchID, publicOnly)
	if err != nil {
		return nil, s.finish(ctx, "score.list", err)
	}
	return feedback, nil
}

func (s *scoreService) Board(ctx context.Context, actor models.Actor, matchID int) (*ScoreBoard, error) {
	judgeScores, err := s.ListJudgeScores(ctx, matchID)
	if err != nil {
		return nil, err
	}
	playerScores, err := s.ListPlayerScores(ctx, matchID)
	if err != nil {
		return nil, err
	}
	autoScores, err := s.store.Scores.ListAutoScores(ctx, nil, matchID)
	if err != nil {
		return nil, s.finish(ctx, "score.list", err)
	}
	feedback, err := s.ListFeedback(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	return &ScoreBoard{
		MatchID:      matchID,
		JudgeScores:  judgeScores,
		PlayerScores: playerScores,
		AutoScores:   autoScores,
		Feedback:     feedback,
	}, nil
}
