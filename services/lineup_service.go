package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/repositories"
)

type LineupService interface {
	// Submit replaces the team's lineup for the match. Entries start as
	// submitted, so resubmitting after approval requires a new approval.
	Submit(ctx context.Context, actor models.Actor, matchID, teamID int, players []models.LineupPlayer) ([]*models.LineupEntry, error)
	Approve(ctx context.Context, actor models.Actor, matchID, teamID int) ([]*models.LineupEntry, error)
	Get(ctx context.Context, matchID, teamID int) ([]*models.LineupEntry, error)
}

type lineupService struct {
	base
}

func NewLineupService(deps Dependencies) LineupService {
	return &lineupService{base: newBase(deps, "lineup")}
}

type lineupPayload struct {
	MatchID int                   `json:"match_id"`
	TeamID  int                   `json:"team_id"`
	Entries []*models.LineupEntry `json:"entries"`
}

func validateLineup(players []models.LineupPlayer) error {
	if len(players) == 0 {
		return &ValidationError{Field: "players", Reason: "lineup must list at least one player"}
	}
	seen := make(map[int]bool, len(players))
	captains := 0
	for _, p := range players {
		if p.PlayerID <= 0 {
			return &ValidationError{Field: "player_id", Reason: "must be positive"}
		}
		if seen[p.PlayerID] {
			return fmt.Errorf("%w: player %d", ErrDuplicateLineupEntry, p.PlayerID)
		}
		seen[p.PlayerID] = true
		if p.IsCaptain {
			captains++
		}
	}
	if captains > 1 {
		return ErrMultipleCaptains
	}
	return nil
}

func (s *lineupService) Submit(ctx context.Context, actor models.Actor, matchID, teamID int, players []models.LineupPlayer) ([]*models.LineupEntry, error) {
	if err := validateLineup(players); err != nil {
		return nil, s.finish(ctx, "lineup.submit", err)
	}

	var entries []*models.LineupEntry
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.openMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if !match.HasTeam(teamID) {
			return ErrTeamNotInMatch
		}
		if _, err := s.requireAcceptedJudge(ctx, exec, matchID, actor); err != nil {
			return err
		}

		for _, p := range players {
			member, err := s.store.Members.Get(ctx, exec, teamID, p.PlayerID)
			if errors.Is(err, repositories.ErrMemberNotFound) || (err == nil && !member.IsActive) {
				return fmt.Errorf("%w: player %d", ErrPlayerNotActive, p.PlayerID)
			}
			if err != nil {
				return err
			}
		}

		now := s.now()
		entries = make([]*models.LineupEntry, 0, len(players))
		for _, p := range players {
			entries = append(entries, &models.LineupEntry{
				MatchID:      matchID,
				TeamID:       teamID,
				PlayerID:     p.PlayerID,
				Position:     p.Position,
				Role:         p.Role,
				IsCaptain:    p.IsCaptain,
				IsSubstitute: p.IsSubstitute,
				Status:       models.LineupSubmitted,
				SubmittedAt:  now,
			})
		}
		return s.store.Lineups.Replace(ctx, exec, matchID, teamID, entries)
	})
	if err = s.finish(ctx, "lineup.submit", err); err != nil {
		return nil, err
	}

	s.notify(ctx, live.MatchChannel(matchID), "lineup.submitted", lineupPayload{MatchID: matchID, TeamID: teamID, Entries: entries})
	return entries, nil
}

func (s *lineupService) Approve(ctx context.Context, actor models.Actor, matchID, teamID int) ([]*models.LineupEntry, error) {
	var entries []*models.LineupEntry
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.openMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if !match.HasTeam(teamID) {
			return ErrTeamNotInMatch
		}
		if _, err := s.requireAcceptedJudge(ctx, exec, matchID, actor); err != nil {
			return err
		}

		approved, err := s.store.Lineups.Approve(ctx, exec, matchID, teamID, s.now())
		if err != nil {
			return err
		}
		if approved == 0 {
			return ErrLineupNotFound
		}
		entries, err = s.store.Lineups.ListByTeam(ctx, exec, matchID, teamID)
		return err
	})
	if err = s.finish(ctx, "lineup.approve", err); err != nil {
		return nil, err
	}

	s.notify(ctx, live.MatchChannel(matchID), "lineup.approved", lineupPayload{MatchID: matchID, TeamID: teamID, Entries: entries})
	return entries, nil
}

func (s *lineupService) Get(ctx context.Context, matchID, teamID int) ([]*models.LineupEntry, error) {
	match, err := s.store.Matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, s.finish(ctx, "lineup.get", err)
	}
	if !match.HasTeam(teamID) {
		return nil, ErrTeamNotInMatch
	}
	entries, err := s.store.Lineups.ListByTeam(ctx, nil, matchID, teamID)
	if err != nil {
		return nil, s.finish(ctx, "lineup.get", err)
	}
	return entries, nil
}
