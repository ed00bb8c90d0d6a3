package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"circulation-engine/internal/domain/member"
)

type RegisterMemberRequest struct {
	StudentID       string `json:"studentId"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	MaxBooksAllowed int    `json:"maxBooksAllowed"`
}

func (r *RegisterMemberRequest) Validate() error {
	if r.StudentID == "" {
		return fmt.Errorf("studentId is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return fmt.Errorf("email is not a valid address")
	}
	if r.MaxBooksAllowed < 0 {
		return fmt.Errorf("maxBooksAllowed cannot be negative")
	}
	return nil
}

type MemberResponse struct {
	ID                 string    `json:"id"`
	StudentID          string    `json:"studentId"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"`
	MaxBooksAllowed    int       `json:"maxBooksAllowed"`
	CurrentBooksIssued int       `json:"currentBooksIssued"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type MemberListResponse struct {
	Members []MemberResponse `json:"members"`
	Count   int              `json:"count"`
}

func NewMemberResponse(m *member.Member) MemberResponse {
	return MemberResponse{
		ID:                 strconv.FormatInt(m.MemberID, 10),
		StudentID:          m.StudentID,
		Name:               m.Name,
		Email:              m.Email,
		MaxBooksAllowed:    m.MaxBooksAllowed,
		CurrentBooksIssued: m.CurrentBooksIssued,
		Active:             m.Active,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func NewMemberListResponse(members []*member.Member) MemberListResponse {
	resp := MemberListResponse{
		Members: make([]MemberResponse, 0, len(members)),
		Count:   len(members),
	}
	for _, m := range members {
		resp.Members = append(resp.Members, NewMemberResponse(m))
	}
	return resp
}
