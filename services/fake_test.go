package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/repositories"
)

// ------------------------
// In-memory store
// ------------------------

type pairKey struct{ a, b int }

type tripleKey struct{ a, b, c int }

type memState struct {
	matches      map[int]models.Match
	assignments  map[pairKey]models.JudgeAssignment
	timers       map[int]models.MatchTimer
	lineups      map[pairKey][]models.LineupEntry
	judgeScores  map[tripleKey]models.JudgeScore
	playerScores map[tripleKey]models.PlayerScore
	autoScores   map[pairKey]models.AutoScore
	feedback     []models.MatchFeedback
	teams        map[int]models.Team
	members      map[pairKey]models.TeamMember
	users        map[int]models.User
	nextID       int
}

func newMemState() *memState {
	return &memState{
		matches:      map[int]models.Match{},
		assignments:  map[pairKey]models.JudgeAssignment{},
		timers:       map[int]models.MatchTimer{},
		lineups:      map[pairKey][]models.LineupEntry{},
		judgeScores:  map[tripleKey]models.JudgeScore{},
		playerScores: map[tripleKey]models.PlayerScore{},
		autoScores:   map[pairKey]models.AutoScore{},
		teams:        map[int]models.Team{},
		members:      map[pairKey]models.TeamMember{},
		users:        map[int]models.User{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	lineups := make(map[pairKey][]models.LineupEntry, len(s.lineups))
	for k, v := range s.lineups {
		lineups[k] = append([]models.LineupEntry(nil), v...)
	}
	return &memState{
		matches:      cloneMap(s.matches),
		assignments:  cloneMap(s.assignments),
		timers:       cloneMap(s.timers),
		lineups:      lineups,
		judgeScores:  cloneMap(s.judgeScores),
		playerScores: cloneMap(s.playerScores),
		autoScores:   cloneMap(s.autoScores),
		feedback:     append([]models.MatchFeedback(nil), s.feedback...),
		teams:        cloneMap(s.teams),
		members:      cloneMap(s.members),
		users:        cloneMap(s.users),
		nextID:       s.nextID,
	}
}

func (s *memState) id() int {
	s.nextID++
	return s.nextID
}

// memDB mimics a database with serializable transactions: WithinTx runs one
// closure at a time and restores the previous state when it fails.
type memDB struct {
	mu    sync.Mutex
	state *memState
	txs   int
	// shareLocks counts match reads taken with GetByIDForShare.
	shareLocks int
	// lockedUsers lists user rows read with GetByIDForUpdate.
	lockedUsers []int
}

func newMemDB() *memDB {
	return &memDB{state: newMemState()}
}

func (d *memDB) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txs++

	snapshot := d.state.clone()
	if err := fn(nil); err != nil {
		d.state = snapshot
		return err
	}
	return nil
}

func (d *memDB) store() repositories.Store {
	return repositories.Store{
		Tx:          d,
		Matches:     fakeMatches{d},
		Assignments: fakeAssignments{d},
		Timers:      fakeTimers{d},
		Lineups:     fakeLineups{d},
		Scores:      fakeScores{d},
		Feedback:    fakeFeedback{d},
		Teams:       fakeTeams{d},
		Members:     fakeMembers{d},
		Users:       fakeUsers{d},
	}
}

// --- Matches ---

type fakeMatches struct{ d *memDB }

func (f fakeMatches) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	m, ok := f.d.state.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &m, nil
}

func (f fakeMatches) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return f.GetByID(ctx, exec, id)
}

func (f fakeMatches) GetByIDForShare(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	f.d.shareLocks++
	return f.GetByID(ctx, exec, id)
}

func (f fakeMatches) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.MatchStatus) error {
	m, ok := f.d.state.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	f.d.state.matches[id] = m
	return nil
}

func (f fakeMatches) SaveResult(_ context.Context, _ repositories.SQLExecutor, result *models.MatchResult) error {
	m, ok := f.d.state.matches[result.MatchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	home, away := result.HomeFinalScore, result.AwayFinalScore
	m.Status = models.MatchStatusCompleted
	m.WinnerID = result.WinnerID
	m.HomeFinalScore = &home
	m.AwayFinalScore = &away
	m.Draw = result.Draw
	f.d.state.matches[result.MatchID] = m
	return nil
}

// --- Judge assignments ---

type fakeAssignments struct{ d *memDB }

func (f fakeAssignments) Get(_ context.Context, _ repositories.SQLExecutor, matchID, judgeID int) (*models.JudgeAssignment, error) {
	a, ok := f.d.state.assignments[pairKey{matchID, judgeID}]
	if !ok {
		return nil, repositories.ErrAssignmentNotFound
	}
	return &a, nil
}

func (f fakeAssignments) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.JudgeAssignment, error) {
	out := make([]*models.JudgeAssignment, 0)
	for k, a := range f.d.state.assignments {
		if k.a == matchID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JudgeID < out[j].JudgeID })
	return out, nil
}

func (f fakeAssignments) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, matchID, judgeID int, status models.AssignmentStatus, respondedAt time.Time) error {
	key := pairKey{matchID, judgeID}
	a, ok := f.d.state.assignments[key]
	if !ok {
		return repositories.ErrAssignmentNotFound
	}
	a.Status = status
	a.RespondedAt = &respondedAt
	f.d.state.assignments[key] = a
	return nil
}

// --- Timers ---

type fakeTimers struct{ d *memDB }

func (f fakeTimers) Get(_ context.Context, _ repositories.SQLExecutor, matchID int) (*models.MatchTimer, error) {
	t, ok := f.d.state.timers[matchID]
	if !ok {
		return nil, repositories.ErrTimerNotFound
	}
	return &t, nil
}

func (f fakeTimers) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.MatchTimer, error) {
	return f.Get(ctx, exec, matchID)
}

func (f fakeTimers) Save(_ context.Context, _ repositories.SQLExecutor, timer *models.MatchTimer) error {
	f.d.state.timers[timer.MatchID] = *timer
	return nil
}

// --- Lineups ---

type fakeLineups struct{ d *memDB }

func (f fakeLineups) Replace(_ context.Context, _ repositories.SQLExecutor, matchID, teamID int, entries []*models.LineupEntry) error {
	stored := make([]models.LineupEntry, 0, len(entries))
	for _, e := range entries {
		e.ID = f.d.state.id()
		stored = append(stored, *e)
	}
	f.d.state.lineups[pairKey{matchID, teamID}] = stored
	return nil
}

func (f fakeLineups) Approve(_ context.Context, _ repositories.SQLExecutor, matchID, teamID int, approvedAt time.Time) (int64, error) {
	entries := f.d.state.lineups[pairKey{matchID, teamID}]
	for i := range entries {
		entries[i].Status = models.LineupApproved
		entries[i].ApprovedAt = &approvedAt
	}
	return int64(len(entries)), nil
}

func (f fakeLineups) ListByTeam(_ context.Context, _ repositories.SQLExecutor, matchID, teamID int) ([]*models.LineupEntry, error) {
	out := make([]*models.LineupEntry, 0)
	for _, e := range f.d.state.lineups[pairKey{matchID, teamID}] {
		e := e
		out = append(out, &e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f fakeLineups) IsPlayerApproved(_ context.Context, _ repositories.SQLExecutor, matchID, playerID int) (bool, error) {
	for k, entries := range f.d.state.lineups {
		if k.a != matchID {
			continue
		}
		for _, e := range entries {
			if e.PlayerID == playerID && e.Status == models.LineupApproved {
				return true, nil
			}
		}
	}
	return false, nil
}

// --- Scores ---

type fakeScores struct{ d *memDB }

func (f fakeScores) UpsertJudgeScore(_ context.Context, _ repositories.SQLExecutor, score *models.JudgeScore) error {
	key := tripleKey{score.MatchID, score.JudgeID, score.TeamID}
	existing, ok := f.d.state.judgeScores[key]
	if ok && existing.IsLocked {
		return repositories.ErrScoreLocked
	}
	if ok {
		score.ID = existing.ID
	} else {
		score.ID = f.d.state.id()
	}
	score.IsLocked = false
	score.UpdatedAt = time.Now()
	f.d.state.judgeScores[key] = *score
	return nil
}

func (f fakeScores) LockJudgeScore(_ context.Context, _ repositories.SQLExecutor, matchID, judgeID, teamID int, at time.Time) (*models.JudgeScore, error) {
	key := tripleKey{matchID, judgeID, teamID}
	s, ok := f.d.state.judgeScores[key]
	if !ok {
		return nil, repositories.ErrScoreNotFound
	}
	if !s.IsLocked {
		s.IsLocked = true
		s.SubmittedAt = &at
		f.d.state.judgeScores[key] = s
	}
	return &s, nil
}

func (f fakeScores) GetJudgeScore(_ context.Context, _ repositories.SQLExecutor, matchID, judgeID, teamID int) (*models.JudgeScore, error) {
	s, ok := f.d.state.judgeScores[tripleKey{matchID, judgeID, teamID}]
	if !ok {
		return nil, repositories.ErrScoreNotFound
	}
	return &s, nil
}

func (f fakeScores) ListJudgeScores(_ context.Context, _ repositories.SQLExecutor, matchID int, lockedOnly bool) ([]models.JudgeScore, error) {
	out := make([]models.JudgeScore, 0)
	for k, s := range f.d.state.judgeScores {
		if k.a == matchID && (s.IsLocked || !lockedOnly) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeScores) UpsertPlayerScore(_ context.Context, _ repositories.SQLExecutor, score *models.PlayerScore) error {
	key := tripleKey{score.MatchID, score.JudgeID, score.PlayerID}
	if existing, ok := f.d.state.playerScores[key]; ok {
		score.ID = existing.ID
	} else {
		score.ID = f.d.state.id()
	}
	f.d.state.playerScores[key] = *score
	return nil
}

func (f fakeScores) ListPlayerScores(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]models.PlayerScore, error) {
	out := make([]models.PlayerScore, 0)
	for k, s := range f.d.state.playerScores {
		if k.a == matchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeScores) UpsertAutoScore(_ context.Context, _ repositories.SQLExecutor, score *models.AutoScore) error {
	key := pairKey{score.MatchID, score.TeamID}
	if existing, ok := f.d.state.autoScores[key]; ok {
		score.ID = existing.ID
	} else {
		score.ID = f.d.state.id()
	}
	f.d.state.autoScores[key] = *score
	return nil
}

func (f fakeScores) ListAutoScores(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]models.AutoScore, error) {
	out := make([]models.AutoScore, 0)
	for k, s := range f.d.state.autoScores {
		if k.a == matchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

// --- Feedback ---

type fakeFeedback struct{ d *memDB }

func (f fakeFeedback) Create(_ context.Context, _ repositories.SQLExecutor, feedback *models.MatchFeedback) error {
	feedback.ID = f.d.state.id()
	feedback.CreatedAt = time.Now()
	f.d.state.feedback = append(f.d.state.feedback, *feedback)
	return nil
}

func (f fakeFeedback) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int, publicOnly bool) ([]*models.MatchFeedback, error) {
	out := make([]*models.MatchFeedback, 0)
	for _, fb := range f.d.state.feedback {
		if fb.MatchID == matchID && (fb.IsPublic || !publicOnly) {
			fb := fb
			out = append(out, &fb)
		}
	}
	return out, nil
}

// --- Teams and members ---

type fakeTeams struct{ d *memDB }

func (f fakeTeams) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Team, error) {
	t, ok := f.d.state.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return &t, nil
}

func (f fakeTeams) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Team, error) {
	return f.GetByID(ctx, exec, id)
}

func (f fakeTeams) SetCaptain(_ context.Context, _ repositories.SQLExecutor, teamID int, captainID *int) error {
	t, ok := f.d.state.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.CaptainID = captainID
	f.d.state.teams[teamID] = t
	return nil
}

type fakeMembers struct{ d *memDB }

func (f fakeMembers) CountActive(_ context.Context, _ repositories.SQLExecutor, teamID int) (int, error) {
	count := 0
	for k, m := range f.d.state.members {
		if k.a == teamID && m.IsActive {
			count++
		}
	}
	return count, nil
}

func (f fakeMembers) Get(_ context.Context, _ repositories.SQLExecutor, teamID, playerID int) (*models.TeamMember, error) {
	m, ok := f.d.state.members[pairKey{teamID, playerID}]
	if !ok {
		return nil, repositories.ErrMemberNotFound
	}
	return &m, nil
}

func (f fakeMembers) list(match func(pairKey) bool) []*models.TeamMember {
	out := make([]*models.TeamMember, 0)
	for k, m := range f.d.state.members {
		if match(k) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f fakeMembers) ListByTeam(_ context.Context, _ repositories.SQLExecutor, teamID int) ([]*models.TeamMember, error) {
	return f.list(func(k pairKey) bool { return k.a == teamID }), nil
}

func (f fakeMembers) ListByPlayer(_ context.Context, _ repositories.SQLExecutor, playerID int) ([]*models.TeamMember, error) {
	return f.list(func(k pairKey) bool { return k.b == playerID }), nil
}

func (f fakeMembers) Upsert(_ context.Context, _ repositories.SQLExecutor, member *models.TeamMember) error {
	key := pairKey{member.TeamID, member.PlayerID}
	if existing, ok := f.d.state.members[key]; ok {
		member.ID = existing.ID
		member.JoinedAt = existing.JoinedAt
	} else {
		member.ID = f.d.state.id()
		member.JoinedAt = time.Now()
	}
	member.UpdatedAt = time.Now()
	f.d.state.members[key] = *member
	return nil
}

func (f fakeMembers) Delete(_ context.Context, _ repositories.SQLExecutor, teamID, playerID int) error {
	key := pairKey{teamID, playerID}
	if _, ok := f.d.state.members[key]; !ok {
		return repositories.ErrMemberNotFound
	}
	delete(f.d.state.members, key)
	return nil
}

type fakeUsers struct{ d *memDB }

func (f fakeUsers) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.User, error) {
	u, ok := f.d.state.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (f fakeUsers) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.User, error) {
	f.d.lockedUsers = append(f.d.lockedUsers, id)
	return f.GetByID(ctx, exec, id)
}

// ------------------------
// Recording publisher
// ------------------------

type publishedEvent struct {
	Channel string
	Event   string
	Payload json.RawMessage
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, channel, event string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Channel: channel, Event: event, Payload: raw})
	return nil
}

// Events returns the names published on channel, in order.
func (p *recordingPublisher) Events(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, e := range p.events {
		if e.Channel == channel {
			names = append(names, e.Event)
		}
	}
	return names
}

// ------------------------
// Fixtures
// ------------------------

type fixture struct {
	db        *memDB
	publisher *recordingPublisher
	now       time.Time
	deps      Dependencies
}

func newFixture() *fixture {
	f := &fixture{
		db:        newMemDB(),
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	f.deps = Dependencies{
		Store:     f.db.store(),
		Publisher: f.publisher,
		Clock:     func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) addSchool(schoolID int, coachID int) {
	f.db.state.users[coachID] = models.User{ID: coachID, FirstName: "Coach", Role: models.RoleCoach, SchoolID: &schoolID}
}

func (f *fixture) addTeam(id, schoolID int, tier models.Tier) {
	f.db.state.teams[id] = models.Team{ID: id, Name: "team", SchoolID: schoolID, Tier: tier}
}

func (f *fixture) addPlayer(id, schoolID, experience int) {
	f.db.state.users[id] = models.User{ID: id, FirstName: "Player", Role: models.RolePlayer, SchoolID: &schoolID, ExperiencePoints: experience}
}

func (f *fixture) addMember(teamID, playerID int, active bool) {
	f.db.state.members[pairKey{teamID, playerID}] = models.TeamMember{
		ID: f.db.state.id(), TeamID: teamID, PlayerID: playerID, IsActive: active,
	}
}

func (f *fixture) addMatch(id, homeID, awayID int) {
	f.db.state.matches[id] = models.Match{ID: id, Status: models.StatusScheduled, HomeTeamID: homeID, AwayTeamID: awayID}
}

func (f *fixture) assignJudge(matchID, judgeID int, status models.AssignmentStatus, main bool) {
	f.db.state.assignments[pairKey{matchID, judgeID}] = models.JudgeAssignment{
		ID: f.db.state.id(), MatchID: matchID, JudgeID: judgeID, Status: status, IsMainJudge: main,
	}
}

func (f *fixture) match(id int) models.Match {
	return f.db.state.matches[id]
}

func judge(id int) models.Actor {
	return models.Actor{UserID: id, Role: models.RoleJudge}
}

func uniformCriteria(v float64) models.Criteria {
	return models.Criteria{
		CodeFunctionality: v, Innovation: v, Presentation: v,
		ProblemRelevance: v, Feasibility: v, Collaboration: v,
	}
}
