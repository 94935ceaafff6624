package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

// Repo is the primary-store access layer for applications, jobs, profiles
// and the outbox.
type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// --- applications ---

const insertApplicationSQL = `
INSERT INTO applications (
  user_id, job_id, status, cover_letter, resume_url, notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id
`

const selectApplicationSQL = `
SELECT id, user_id, job_id, status, cover_letter, resume_url, notes, created_at, updated_at
FROM applications WHERE id = $1
`

const updateApplicationSQL = `
UPDATE applications
SET status = $2, notes = $3, updated_at = $4
WHERE id = $1
`

func scanApplication(row *sql.Row) (*domain.Application, error) {
	var a domain.Application
	var status string
	err := row.Scan(
		&a.ID, &a.UserID, &a.JobID, &status,
		&a.CoverLetter, &a.ResumeURL, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("application not found")
	}
	if err != nil {
		return nil, err
	}
	a.Status = domain.ApplicationStatus(status)
	return &a, nil
}

func (r *Repo) GetApplication(ctx context.Context, id int64) (*domain.Application, error) {
	return scanApplication(r.db.QueryRowContext(ctx, selectApplicationSQL, id))
}

func (r *Repo) ListApplicationsByUser(ctx context.Context, userID int64, page, pageSize int) ([]*domain.Application, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, job_id, status, cover_letter, resume_url, notes, created_at, updated_at
FROM applications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Application
	for rows.Next() {
		var a domain.Application
		var status string
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.JobID, &status,
			&a.CoverLetter, &a.ResumeURL, &a.Notes,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.Status = domain.ApplicationStatus(status)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- jobs ---

const insertJobSQL = `
INSERT INTO jobs (
  employer_id, title, description, location, status,
  application_deadline, view_count, application_count, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8)
RETURNING id
`

const selectJobSQL = `
SELECT id, employer_id, title, description, location, status,
       application_deadline, view_count, application_count, created_at, updated_at
FROM jobs WHERE id = $1
`

const updateJobSQL = `
UPDATE jobs
SET title = $2, description = $3, location = $4, status = $5,
    application_deadline = $6, updated_at = $7
WHERE id = $1
`

func scanJobRow(scan func(dest ...any) error) (*domain.Job, error) {
	var j domain.Job
	var status string
	var deadline sql.NullTime
	err := scan(
		&j.ID, &j.EmployerID, &j.Title, &j.Description, &j.Location, &status,
		&deadline, &j.ViewCount, &j.ApplicationCount, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	if deadline.Valid {
		t := deadline.Time
		j.ApplicationDeadline = &t
	}
	return &j, nil
}

func (r *Repo) InsertJob(ctx context.Context, j *domain.Job) error {
	return r.db.QueryRowContext(ctx, insertJobSQL,
		j.EmployerID, j.Title, j.Description, j.Location, string(j.Status),
		nullTime(j.ApplicationDeadline), j.CreatedAt, j.UpdatedAt,
	).Scan(&j.ID)
}

func (r *Repo) GetJob(ctx context.Context, id int64) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, selectJobSQL, id)
	j, err := scanJobRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("job not found")
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// SearchJobs runs the primary-store query behind the search cache.
type JobSearch struct {
	Keyword  string
	Location string
	Status   string
	Sort     string
	Page     int
	PageSize int
}

func (r *Repo) SearchJobs(ctx context.Context, f JobSearch) ([]*domain.Job, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}

	where := []string{"1=1"}
	args := []any{}
	n := 1

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
		args = append(args, "%"+kw+"%")
		n++
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, fmt.Sprintf("location ILIKE $%d", n))
		args = append(args, "%"+loc+"%")
		n++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", n))
		args = append(args, f.Status)
		n++
	} else {
		where = append(where, "status = 'ACTIVE'")
	}

	order := "created_at DESC"
	if f.Sort == "views" {
		order = "view_count DESC"
	}

	query := fmt.Sprintf(`
SELECT id, employer_id, title, description, location, status,
       application_deadline, view_count, application_count, created_at, updated_at
FROM jobs
WHERE %s
ORDER BY %s
LIMIT $%d OFFSET $%d
`, strings.Join(where, " AND "), order, n, n+1)
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJobRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *Repo) IncrementJobViews(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET view_count = view_count + 1 WHERE id = $1`, id)
	return err
}

func (r *Repo) IncrementApplicationCount(ctx context.Context, jobID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET application_count = application_count + 1 WHERE id = $1`, jobID)
	return err
}

// ListExpirableJobs returns ACTIVE jobs whose deadline passed before the cutoff.
func (r *Repo) ListExpirableJobs(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, employer_id, title, description, location, status,
       application_deadline, view_count, application_count, created_at, updated_at
FROM jobs
WHERE status = 'ACTIVE' AND application_deadline < $1
ORDER BY application_deadline ASC
LIMIT $2
`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJobRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// --- profiles ---

const selectProfileSQL = `
SELECT user_id, full_name, headline, location, resume_url, email, phone, push_token, updated_at
FROM profiles WHERE user_id = $1
`

type Profile struct {
	UserID    int64     `json:"userId"`
	FullName  string    `json:"fullName"`
	Headline  string    `json:"headline"`
	Location  string    `json:"location"`
	ResumeURL string    `json:"resumeUrl"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	PushToken string    `json:"pushToken"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Repo) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	err := r.db.QueryRowContext(ctx, selectProfileSQL, userID).Scan(
		&p.UserID, &p.FullName, &p.Headline, &p.Location, &p.ResumeURL, &p.Email, &p.Phone, &p.PushToken, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("profile not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) UpsertProfile(ctx context.Context, p *Profile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (user_id, full_name, headline, location, resume_url, email, phone, push_token, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id) DO UPDATE
SET full_name = $2, headline = $3, location = $4, resume_url = $5, email = $6, phone = $7, push_token = $8, updated_at = $9
`, p.UserID, p.FullName, p.Headline, p.Location, p.ResumeURL, p.Email, p.Phone, p.PushToken, p.UpdatedAt)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
