package handlers

import (
	"errors"
	"net/http"

	"github.com/crowbar-gg/crowbar-backend/middleware"
	"github.com/crowbar-gg/crowbar-backend/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// CreateMatch records a match played by the authenticated caller. player1 is
// always the caller; the request body names the opponent and the winner.
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.CreateMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.Player1ID = callerID

	if input.Player2ID == 0 || input.WinnerID == 0 {
		badRequestResponse(w, r, errors.New("player2_id and winner_id are required"))
		return
	}

	result, err := h.matchService.CreateMatch(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id":       result.MatchID,
		"rating_changes": result.RatingChanges,
	}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r, maxPageSize)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListAllMatches(r.Context(), page, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"data": matches,
		"pagination": jsonResponse{
			"page":  page,
			"limit": limit,
			"total": len(matches),
		},
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) RecentMatches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 5)
	if err != nil || limit < 1 {
		badRequestResponse(w, r, errors.New("invalid limit parameter: must be a positive integer"))
		return
	}
	if limit > maxRecentMatches {
		limit = maxRecentMatches
	}

	matches, err := h.matchService.ListRecentMatches(r.Context(), limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"data": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetMatchByID(w http.ResponseWriter, r *http.Request) {
	matchID, err := parseIDParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatchByID(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"data": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListUserMatches(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.listMatchesForUser(w, r, userID)
}

// MyMatches lists the authenticated caller's own matches.
func (h *MatchHandler) MyMatches(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	h.listMatchesForUser(w, r, userID)
}

func (h *MatchHandler) listMatchesForUser(w http.ResponseWriter, r *http.Request, userID int) {
	page, limit, err := parsePagination(r, maxPageSize)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListUserMatches(r.Context(), userID, page, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"data": matches,
		"pagination": jsonResponse{
			"page":  page,
			"limit": limit,
			"total": len(matches),
		},
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.statsForUser(w, r, userID)
}

func (h *MatchHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	h.statsForUser(w, r, userID)
}

func (h *MatchHandler) statsForUser(w http.ResponseWriter, r *http.Request, userID int) {
	stats, err := h.matchService.GetPlayerStats(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"data": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
