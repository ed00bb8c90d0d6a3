package dto

import (
	"fmt"
	"strconv"
	"time"

	"circulation-engine/internal/domain/book"
)

type CreateBookRequest struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	TotalCopies int    `json:"totalCopies"`
}

func (r *CreateBookRequest) Validate() error {
	if r.ISBN == "" {
		return fmt.Errorf("isbn is required")
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.TotalCopies < 0 {
		return fmt.Errorf("totalCopies cannot be negative")
	}
	return nil
}

type UpdateStockRequest struct {
	TotalCopies int `json:"totalCopies"`
}

func (r *UpdateStockRequest) Validate() error {
	if r.TotalCopies < 0 {
		return fmt.Errorf("totalCopies cannot be negative")
	}
	return nil
}

type BookResponse struct {
	ID              string    `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type BookListResponse struct {
	Books []BookResponse `json:"books"`
	Count int            `json:"count"`
}

func NewBookResponse(b *book.Book) BookResponse {
	return BookResponse{
		ID:              strconv.FormatInt(b.BookID, 10),
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Active:          b.Active,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func NewBookListResponse(books []*book.Book) BookListResponse {
	resp := BookListResponse{
		Books: make([]BookResponse, 0, len(books)),
		Count: len(books),
	}
	for _, b := range books {
		resp.Books = append(resp.Books, NewBookResponse(b))
	}
	return resp
}
