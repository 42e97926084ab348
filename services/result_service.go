package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/officiating"
	"github.com/Dosada05/coding-league/repositories"
	"github.com/Dosada05/coding-league/storage"
)

// ScorecardArchiver stores the full scorecard of a finalized match.
type ScorecardArchiver interface {
	ArchiveScorecard(ctx context.Context, card storage.Scorecard) (string, error)
}

type ResultService interface {
	// SubmitResults finalizes the match. Every accepted judge must sign and
	// the caller must be the main judge. A failed call changes nothing.
	SubmitResults(ctx context.Context, actor models.Actor, matchID int, signatures []models.JudgeSignature, finalComments string) (*models.MatchResult, error)
}

type resultService struct {
	base
	weights  officiating.ScoreWeights
	archiver ScorecardArchiver
}

// NewResultService builds the finalizer. archiver may be nil, in which case
// scorecards are not archived.
func NewResultService(deps Dependencies, weights officiating.ScoreWeights, archiver ScorecardArchiver) ResultService {
	return &resultService{
		base:     newBase(deps, "result"),
		weights:  weights,
		archiver: archiver,
	}
}

type leaderboardPayload struct {
	MatchID        int  `json:"match_id"`
	HomeTeamID     int  `json:"home_team_id"`
	AwayTeamID     int  `json:"away_team_id"`
	WinnerID       *int `json:"winner_id,omitempty"`
	Draw           bool `json:"draw"`
	HomeFinalScore int  `json:"home_final_score"`
	AwayFinalScore int  `json:"away_final_score"`
}

// countSignatures returns how many accepted judges signed. Blank signatures,
// repeated judges and judges without an accepted assignment do not count.
func countSignatures(accepted map[int]bool, signatures []models.JudgeSignature) int {
	signed := make(map[int]bool, len(signatures))
	for _, sig := range signatures {
		if !accepted[sig.JudgeID] || strings.TrimSpace(sig.Signature) == "" {
			continue
		}
		signed[sig.JudgeID] = true
	}
	return len(signed)
}

func (s *resultService) SubmitResults(ctx context.Context, actor models.Actor, matchID int, signatures []models.JudgeSignature, finalComments string) (*models.MatchResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, s.finish(ctx, "result.submit", err)
	}

	var (
		result *models.MatchResult
		card   storage.Scorecard
	)
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.store.Matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if match.IsFinalized() {
			return ErrMatchCompleted
		}

		assignments, err := s.store.Assignments.ListByMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		accepted := make(map[int]bool, len(assignments))
		callerIsMain := false
		for _, a := range assignments {
			if a.Status != models.AssignmentAccepted {
				continue
			}
			accepted[a.JudgeID] = true
			if a.JudgeID == actor.UserID && a.IsMainJudge {
				callerIsMain = true
			}
		}
		if len(accepted) == 0 {
			return ErrNoJudgesAccepted
		}
		if !callerIsMain {
			return ErrNotMainJudge
		}

		signed := countSignatures(accepted, signatures)
		if signed < len(accepted) {
			return &QuorumNotMetError{Required: len(accepted), Signed: signed}
		}

		scores, err := s.store.Scores.ListJudgeScores(ctx, exec, matchID, true)
		if err != nil {
			return err
		}
		autoScores, err := s.store.Scores.ListAutoScores(ctx, exec, matchID)
		if err != nil {
			return err
		}
		autoByTeam := make(map[int]models.AutoScore, len(autoScores))
		for _, a := range autoScores {
			autoByTeam[a.TeamID] = a
		}

		outcome, err := officiating.Aggregate(s.weights, match.HomeTeamID, match.AwayTeamID, scores, autoByTeam)
		switch {
		case errors.Is(err, officiating.ErrNoLockedScores):
			return ErrNoLockedScores
		case errors.Is(err, officiating.ErrTeamWithoutScores):
			return fmt.Errorf("%w: %v", ErrTeamWithoutScores, err)
		case err != nil:
			return err
		}

		now := s.now()
		result = &models.MatchResult{
			MatchID:        matchID,
			WinnerID:       outcome.WinnerID,
			Draw:           outcome.Draw,
			TieBroken:      outcome.TieBroken,
			HomeTeamID:     match.HomeTeamID,
			AwayTeamID:     match.AwayTeamID,
			HomeMean:       outcome.HomeMean,
			AwayMean:       outcome.AwayMean,
			HomeFinalScore: outcome.HomeRounded(),
			AwayFinalScore: outcome.AwayRounded(),
			SignedJudges:   signed,
			RequiredJudges: len(accepted),
			FinalizedAt:    now,
		}
		if err := s.store.Matches.SaveResult(ctx, exec, result); err != nil {
			return err
		}
		if comments := strings.TrimSpace(finalComments); comments != "" {
			feedback := &models.MatchFeedback{MatchID: matchID, JudgeID: actor.UserID, Message: comments}
			if err := s.store.Feedback.Create(ctx, exec, feedback); err != nil {
				return err
			}
		}

		if s.archiver == nil {
			return nil
		}
		playerScores, err := s.store.Scores.ListPlayerScores(ctx, exec, matchID)
		if err != nil {
			return err
		}
		card = storage.Scorecard{
			JudgeScores:  scores,
			PlayerScores: playerScores,
			AutoScores:   autoScores,
			Signatures:   signatures,
		}
		return nil
	})
	if err = s.finish(ctx, "result.submit", err); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Match finalized",
		slog.Int("match_id", matchID),
		slog.Any("winner_id", result.WinnerID),
		slog.Bool("draw", result.Draw),
	)

	if s.archiver != nil {
		card.Result = *result
		url, err := s.archiver.ArchiveScorecard(ctx, card)
		if err != nil {
			s.logger.WarnContext(ctx, "Scorecard archive failed", slog.Int("match_id", matchID), slog.Any("error", err))
		} else {
			result.ArchiveURL = url
		}
	}

	s.notify(ctx, live.MatchChannel(matchID), "match.finalized", result)
	s.notify(ctx, live.LeaderboardChannel, "leaderboard.result", leaderboardPayload{
		MatchID:        matchID,
		HomeTeamID:     result.HomeTeamID,
		AwayTeamID:     result.AwayTeamID,
		WinnerID:       result.WinnerID,
		Draw:           result.Draw,
		HomeFinalScore: result.HomeFinalScore,
		AwayFinalScore: result.AwayFinalScore,
	})
	return result, nil
}
