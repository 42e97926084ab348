package repositories

import "github.com/jmoiron/sqlx"

// Store bundles the repositories of one database together with the
// transaction manager that spans them.
type Store struct {
	Tx          TxManager
	Matches     MatchRepository
	Assignments JudgeAssignmentRepository
	Timers      TimerRepository
	Lineups     LineupRepository
	Scores      ScoreRepository
	Feedback    FeedbackRepository
	Teams       TeamRepository
	Members     TeamMemberRepository
	Users       UserRepository
}

func NewPostgresStore(db *sqlx.DB) Store {
	return Store{
		Tx:          NewTxManager(db),
		Matches:     NewPostgresMatchRepository(db),
		Assignments: NewPostgresJudgeAssignmentRepository(db),
		Timers:      NewPostgresTimerRepository(db),
		Lineups:     NewPostgresLineupRepository(db),
		Scores:      NewPostgresScoreRepository(db),
		Feedback:    NewPostgresFeedbackRepository(db),
		Teams:       NewPostgresTeamRepository(db),
		Members:     NewPostgresTeamMemberRepository(db),
		Users:       NewPostgresUserRepository(db),
	}
}
