package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Dosada05/coding-league/models"
	"github.com/google/uuid"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// ObjectUploader puts one object into a bucket and reports where it landed.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
}

// Scorecard is the archived record of a finalized match.
type Scorecard struct {
	Result       models.MatchResult      `json:"result"`
	JudgeScores  []models.JudgeScore     `json:"judge_scores"`
	PlayerScores []models.PlayerScore    `json:"player_scores"`
	AutoScores   []models.AutoScore      `json:"auto_scores"`
	Signatures   []models.JudgeSignature `json:"signatures"`
}

type ScorecardArchive struct {
	uploader ObjectUploader
}

func NewScorecardArchive(uploader ObjectUploader) *ScorecardArchive {
	return &ScorecardArchive{uploader: uploader}
}

// ArchiveScorecard uploads the scorecard as JSON and returns its public URL.
// Every call writes a new object; earlier archives of the same match are kept.
func (a *ScorecardArchive) ArchiveScorecard(ctx context.Context, card Scorecard) (string, error) {
	body, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal scorecard for match %d: %w", card.Result.MatchID, err)
	}

	key := scorecardKey(card.Result.MatchID)
	result, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return result.Location, nil
}

func scorecardKey(matchID int) string {
	return fmt.Sprintf("scorecards/match-%d/%s.json", matchID, uuid.NewString())
}
