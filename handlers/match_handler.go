package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/services"
)

// MatchHandler serves the match-day flow: judge assignments, the clock,
// lineups and the final result.
type MatchHandler struct {
	judgingService services.JudgingService
	timerService   services.TimerService
	lineupService  services.LineupService
	resultService  services.ResultService
}

func NewMatchHandler(
	js services.JudgingService,
	ts services.TimerService,
	ls services.LineupService,
	rs services.ResultService,
) *MatchHandler {
	return &MatchHandler{
		judgingService: js,
		timerService:   ts,
		lineupService:  ls,
		resultService:  rs,
	}
}

type respondAssignmentRequest struct {
	Accept *bool `json:"accept"`
}

type startTimerRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

type endTimerRequest struct {
	ClosingComments string `json:"closing_comments"`
}

type submitLineupRequest struct {
	Players []models.LineupPlayer `json:"players"`
}

type submitResultsRequest struct {
	Signatures    []models.JudgeSignature `json:"signatures"`
	FinalComments string                  `json:"final_comments"`
}

func (h *MatchHandler) RespondAssignment(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input respondAssignmentRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Accept == nil {
		mapServiceErrorToHTTP(w, r, &services.ValidationError{Field: "accept", Reason: "is required"})
		return
	}

	assignment, err := h.judgingService.Respond(r.Context(), actor, matchID, *input.Accept)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"assignment": assignment})
}

func (h *MatchHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	assignments, err := h.judgingService.ListAssignments(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"assignments": assignments})
}

func (h *MatchHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	timer, err := h.timerService.Get(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"timer": timer})
}

// StartTimer принимает необязательную длительность в минутах.
// Без неё используется длительность по умолчанию.
func (h *MatchHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input startTimerRequest
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.DurationMinutes < 0 {
		mapServiceErrorToHTTP(w, r, &services.ValidationError{Field: "duration_minutes", Reason: "must not be negative"})
		return
	}

	timer, err := h.timerService.Start(r.Context(), actor, matchID, time.Duration(input.DurationMinutes)*time.Minute)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"timer": timer})
}

func (h *MatchHandler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	timer, err := h.timerService.Pause(r.Context(), actor, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"timer": timer})
}

func (h *MatchHandler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	timer, err := h.timerService.Resume(r.Context(), actor, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"timer": timer})
}

func (h *MatchHandler) EndTimer(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input endTimerRequest
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	timer, err := h.timerService.End(r.Context(), actor, matchID, input.ClosingComments)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"timer": timer})
}

func (h *MatchHandler) SubmitLineup(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input submitLineupRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	lineup, err := h.lineupService.Submit(r.Context(), actor, matchID, teamID, input.Players)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"lineup": lineup})
}

func (h *MatchHandler) ApproveLineup(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	lineup, err := h.lineupService.Approve(r.Context(), actor, matchID, teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"lineup": lineup})
}

func (h *MatchHandler) GetLineup(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	lineup, err := h.lineupService.Get(r.Context(), matchID, teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"lineup": lineup})
}

func (h *MatchHandler) SubmitResults(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input submitResultsRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.resultService.SubmitResults(r.Context(), actor, matchID, input.Signatures, input.FinalComments)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"result": result})
}
