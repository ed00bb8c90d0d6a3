package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"circulation-engine/internal/api/handler/dto"
	"circulation-engine/internal/domain/member"
	"circulation-engine/internal/pkg/apperrors"
)

type MemberHandler struct {
	service member.Service
	logger  *slog.Logger
}

func NewMemberHandler(s member.Service, l *slog.Logger) *MemberHandler {
	return &MemberHandler{
		service: s,
		logger:  l.With("component", "MemberHandler"),
	}
}

func (h *MemberHandler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.RegisterMember(r.Context(), req.StudentID, req.Name, req.Email, req.MaxBooksAllowed)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewMemberResponse(created))
}

func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := idFromURL(r, "memberID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid member ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	m, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewMemberResponse(m))
}

func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	members, err := h.service.ListMembers(r.Context(), activeOnly)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewMemberListResponse(members))
}

func (h *MemberHandler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := idFromURL(r, "memberID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid member ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.DeactivateMember(r.Context(), memberID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) ReactivateMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := idFromURL(r, "memberID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid member ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.ReactivateMember(r.Context(), memberID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
