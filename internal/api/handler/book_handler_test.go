package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"circulation-engine/internal/api/handler/dto"
	"circulation-engine/internal/domain/book"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBookService struct {
	mock.Mock
}

func (m *MockBookService) AddBook(ctx context.Context, isbn, title, author string, totalCopies int) (*book.Book, error) {
	args := m.Called(ctx, isbn, title, author, totalCopies)
	b, _ := args.Get(0).(*book.Book)
	return b, args.Error(1)
}

func (m *MockBookService) GetBook(ctx context.Context, bookID int64) (*book.Book, error) {
	args := m.Called(ctx, bookID)
	b, _ := args.Get(0).(*book.Book)
	return b, args.Error(1)
}

func (m *MockBookService) ListBooks(ctx context.Context, activeOnly bool) ([]*book.Book, error) {
	args := m.Called(ctx, activeOnly)
	books, _ := args.Get(0).([]*book.Book)
	return books, args.Error(1)
}

func (m *MockBookService) UpdateStock(ctx context.Context, bookID int64, totalCopies int) (*book.Book, error) {
	args := m.Called(ctx, bookID, totalCopies)
	b, _ := args.Get(0).(*book.Book)
	return b, args.Error(1)
}

func (m *MockBookService) DeactivateBook(ctx context.Context, bookID int64) error {
	return m.Called(ctx, bookID).Error(0)
}

func (m *MockBookService) ReactivateBook(ctx context.Context, bookID int64) error {
	return m.Called(ctx, bookID).Error(0)
}

func newBookTestRouter(svc book.Service) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewBookHandler(svc, logger)

	r := chi.NewRouter()
	r.Post("/books", h.CreateBook)
	r.Get("/books", h.ListBooks)
	r.Get("/books/{bookID}", h.GetBook)
	r.Put("/books/{bookID}/stock", h.UpdateStock)
	r.Delete("/books/{bookID}", h.DeactivateBook)
	return r
}

func TestCreateBookHandler(t *testing.T) {
	mockSvc := new(MockBookService)
	router := newBookTestRouter(mockSvc)

	created := &book.Book{BookID: 5, ISBN: "9780132350884", Title: "Clean Code", Author: "Robert C. Martin", TotalCopies: 3, AvailableCopies: 3, Active: true}
	mockSvc.On("AddBook", mock.Anything, "9780132350884", "Clean Code", "Robert C. Martin", 3).
		Return(created, nil).Once()

	body, _ := json.Marshal(dto.CreateBookRequest{ISBN: "9780132350884", Title: "Clean Code", Author: "Robert C. Martin", TotalCopies: 3})
	req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp dto.BookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "5", resp.ID)
	assert.Equal(t, 3, resp.AvailableCopies)
	mockSvc.AssertExpectations(t)
}

func TestCreateBookHandlerDuplicateISBN(t *testing.T) {
	mockSvc := new(MockBookService)
	router := newBookTestRouter(mockSvc)

	mockSvc.On("AddBook", mock.Anything, "9780132350884", "Clean Code", "", 1).
		Return(nil, book.ErrDuplicateISBN).Once()

	body, _ := json.Marshal(dto.CreateBookRequest{ISBN: "9780132350884", Title: "Clean Code", TotalCopies: 1})
	req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	mockSvc.AssertExpectations(t)
}

func TestCreateBookHandlerRejectsMissingTitle(t *testing.T) {
	mockSvc := new(MockBookService)
	router := newBookTestRouter(mockSvc)

	body, _ := json.Marshal(dto.CreateBookRequest{ISBN: "9780132350884"})
	req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "AddBook", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListBooksHandlerActiveFilter(t *testing.T) {
	mockSvc := new(MockBookService)
	router := newBookTestRouter(mockSvc)

	mockSvc.On("ListBooks", mock.Anything, true).Return([]*book.Book{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/books?active=true", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockSvc.AssertExpectations(t)
}
