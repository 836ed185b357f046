package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/coach"
	"github.com/set-night/fitcoach/internal/domain"
)

type messageRequest struct {
	Text string `json:"text"`
}

type segmentResponse struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	DelayMS int64  `json:"delay_ms"`
}

type messageResponse struct {
	Text       string            `json:"text"`
	Segments   []segmentResponse `json:"segments"`
	Outcome    coach.Outcome     `json:"outcome"`
	Iterations int               `json:"iterations"`
	Persisted  bool              `json:"persisted"`
}

// knownUser resolves the path user and writes the error response when it
// is malformed or has no profile.
func (h *Handler) knownUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := userIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid user id")
		return uuid.Nil, false
	}
	if _, err := h.backend.GetProfile(r.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			Error(w, http.StatusNotFound, "user not found")
			return uuid.Nil, false
		}
		slog.Error("load profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.knownUser(w, r)
	if !ok {
		return
	}

	var req messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.engine.Handle(r.Context(), userID, req.Text)
	if err != nil {
		var cd *coach.CooldownError
		switch {
		case errors.As(err, &cd):
			w.Header().Set("Retry-After", strconv.Itoa(cd.Seconds()))
			Error(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, domain.ErrBusy):
			Error(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrEmptyMessage):
			Error(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("handle message", "user_id", userID, "error", err)
			Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	resp := messageResponse{
		Text:       reply.Text,
		Segments:   make([]segmentResponse, 0, len(reply.Segments)),
		Outcome:    reply.Outcome,
		Iterations: reply.Iterations,
		Persisted:  reply.Persisted,
	}
	for _, s := range reply.Segments {
		resp.Segments = append(resp.Segments, segmentResponse{
			Index:   s.Index,
			Text:    s.Text,
			DelayMS: s.Delay.Milliseconds(),
		})
	}
	JSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.knownUser(w, r)
	if !ok {
		return
	}

	if err := h.engine.Reset(r.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrBusy) {
			Error(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("reset history", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
