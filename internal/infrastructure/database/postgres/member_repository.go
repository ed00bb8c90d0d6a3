package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"circulation-engine/internal/domain/member"
	"circulation-engine/internal/infrastructure/monitoring"
	"circulation-engine/internal/pkg/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const memberColumns = `id, student_id, name, email, max_books_allowed, current_books_issued, active, created_at, updated_at`

type MemberRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ member.Repository = (*MemberRepository)(nil)

func NewMemberRepository(db DBPool, logger *slog.Logger) *MemberRepository {
	return &MemberRepository{db: db, logger: logger.With("component", "MemberRepository")}
}

func (r *MemberRepository) Save(ctx context.Context, m *member.Member) error {
	if m.MemberID == 0 {
		return r.insert(ctx, m)
	}
	return r.update(ctx, m)
}

func (r *MemberRepository) insert(ctx context.Context, m *member.Member) error {
	sql := `
        INSERT INTO members (student_id, name, email, max_books_allowed, current_books_issued, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	startTime := time.Now()
	err := r.db.QueryRow(ctx, sql,
		m.StudentID, m.Name, m.Email, m.MaxBooksAllowed, m.CurrentBooksIssued, m.Active,
	).Scan(&m.MemberID, &m.CreatedAt, &m.UpdatedAt)
	monitoring.RecordDBQuery("InsertMember", queryStatus(err), time.Since(startTime))

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.WarnContext(ctx, "Duplicate student ID", "student_id", m.StudentID, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", member.ErrDuplicateStudentID, m.StudentID)
		}
		r.logger.ErrorContext(ctx, "Failed to insert member", "student_id", m.StudentID, "error", err)
		return translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Member created in DB", "member_id", m.MemberID, "student_id", m.StudentID)
	return nil
}

func (r *MemberRepository) update(ctx context.Context, m *member.Member) error {
	sql := `
        UPDATE members
        SET student_id = $1, name = $2, email = $3, max_books_allowed = $4, active = $5, updated_at = NOW()
        WHERE id = $6`

	cmdTag, err := r.db.Exec(ctx, sql,
		m.StudentID, m.Name, m.Email, m.MaxBooksAllowed, m.Active, m.MemberID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", member.ErrDuplicateStudentID, m.StudentID)
		}
		r.logger.ErrorContext(ctx, "Failed to update member", "member_id", m.MemberID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: member %d", apperrors.ErrNotFound, m.MemberID)
	}
	return nil
}

func (r *MemberRepository) FindByID(ctx context.Context, memberID int64) (*member.Member, error) {
	query := `
        SELECT ` + memberColumns + `
        FROM members
        WHERE id = $1`

	startTime := time.Now()
	m, err := r.scanMember(r.db.QueryRow(ctx, query, memberID))
	monitoring.RecordDBQuery("GetMemberByID", queryStatus(err), time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Member not found", "member_id", memberID)
			return nil, fmt.Errorf("%w: member %d", apperrors.ErrNotFound, memberID)
		}
		r.logger.ErrorContext(ctx, "Failed to get member by ID", "member_id", memberID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return m, nil
}

func (r *MemberRepository) FindByStudentID(ctx context.Context, studentID string) (*member.Member, error) {
	query := `
        SELECT ` + memberColumns + `
        FROM members
        WHERE student_id = $1`

	m, err := r.scanMember(r.db.QueryRow(ctx, query, studentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: student ID %s", apperrors.ErrNotFound, studentID)
		}
		r.logger.ErrorContext(ctx, "Failed to get member by student ID", "student_id", studentID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return m, nil
}

func (r *MemberRepository) FindAll(ctx context.Context, activeOnly bool) ([]*member.Member, error) {
	query := `
        SELECT ` + memberColumns + `
        FROM members
        WHERE ($1 = false OR active = true)
        ORDER BY name ASC, id ASC`

	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query members", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	members := make([]*member.Member, 0)
	for rows.Next() {
		var m member.Member
		err := rows.Scan(
			&m.MemberID, &m.StudentID, &m.Name, &m.Email,
			&m.MaxBooksAllowed, &m.CurrentBooksIssued, &m.Active, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan member row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating member rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return members, nil
}

func (r *MemberRepository) SetActiveStatus(ctx context.Context, memberID int64, active bool) error {
	sql := `
        UPDATE members
        SET active = $1, updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, sql, active, memberID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to set member active status", "member_id", memberID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: member %d", apperrors.ErrNotFound, memberID)
	}
	r.logger.InfoContext(ctx, "Member active status updated", "member_id", memberID, "active", active)
	return nil
}

func (r *MemberRepository) CountOpenLoans(ctx context.Context, memberID int64) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM loans
        WHERE member_id = $1 AND status IN ('ACTIVE', 'OVERDUE')`

	var count int
	if err := r.db.QueryRow(ctx, query, memberID).Scan(&count); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count open loans", "member_id", memberID, "error", err)
		return 0, translateDBError(err, r.logger)
	}
	return count, nil
}

func (r *MemberRepository) scanMember(row pgx.Row) (*member.Member, error) {
	var m member.Member
	err := row.Scan(
		&m.MemberID, &m.StudentID, &m.Name, &m.Email,
		&m.MaxBooksAllowed, &m.CurrentBooksIssued, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
