package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"circulation-engine/internal/api/handler/dto"
	"circulation-engine/internal/domain/book"
	"circulation-engine/internal/pkg/apperrors"
)

type BookHandler struct {
	service book.Service
	logger  *slog.Logger
}

func NewBookHandler(s book.Service, l *slog.Logger) *BookHandler {
	return &BookHandler{
		service: s,
		logger:  l.With("component", "BookHandler"),
	}
}

func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.AddBook(r.Context(), req.ISBN, req.Title, req.Author, req.TotalCopies)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewBookResponse(created))
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := idFromURL(r, "bookID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid book ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	b, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewBookResponse(b))
}

func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	books, err := h.service.ListBooks(r.Context(), activeOnly)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewBookListResponse(books))
}

func (h *BookHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	bookID, err := idFromURL(r, "bookID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid book ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.UpdateStockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	updated, err := h.service.UpdateStock(r.Context(), bookID, req.TotalCopies)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewBookResponse(updated))
}

func (h *BookHandler) DeactivateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := idFromURL(r, "bookID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid book ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.DeactivateBook(r.Context(), bookID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) ReactivateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := idFromURL(r, "bookID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid book ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.ReactivateBook(r.Context(), bookID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
