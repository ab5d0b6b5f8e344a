package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

const (
	pgUniqueViolation = "23505"

	projectColumns = `id, client_id, freelancer_id, title, description, budget, skills,
  status, suspended_from, status_version, message_seq, created_at, updated_at`
	applicationColumns = `id, project_id, freelancer_id, proposal, proposed_budget, status, created_at, updated_at`
	messageColumns     = `id, project_id, sender_id, message_type, text, file_url, file_name, seq, created_at`
)

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*domain.Project, error) {
	var (
		p             domain.Project
		status        string
		suspendedFrom *string
	)
	err := row.Scan(&p.ID, &p.ClientID, &p.FreelancerID, &p.Title, &p.Description, &p.Budget, &p.Skills,
		&status, &suspendedFrom, &p.StatusVersion, &p.MessageSeq, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Status = domain.Status(status)
	if suspendedFrom != nil {
		s := domain.Status(*suspendedFrom)
		p.SuspendedFrom = &s
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	return &p, nil
}

func scanApplication(row scanner) (*domain.Application, error) {
	var (
		a      domain.Application
		status string
	)
	err := row.Scan(&a.ID, &a.ProjectID, &a.FreelancerID, &a.Proposal, &a.ProposedBudget, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Status = domain.ApplicationStatus(status)
	return &a, nil
}

func scanMessage(row scanner) (*domain.Message, error) {
	var (
		m     domain.Message
		mtype string
	)
	err := row.Scan(&m.ID, &m.ProjectID, &m.SenderID, &mtype, &m.Text, &m.FileURL, &m.FileName, &m.Seq, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	m.Type = domain.MessageType(mtype)
	return &m, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := p.Status
	if status == "" {
		status = domain.StatusOpen
	}
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}

	q := `
insert into projects (id, client_id, freelancer_id, title, description, budget, skills, status)
values ($1, $2, $3, $4, $5, $6, $7, $8)
returning ` + projectColumns
	return scanProject(s.db.QueryRow(ctx, q,
		id, p.ClientID, p.FreelancerID, p.Title, p.Description, p.Budget, skills, string(status)))
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return scanProject(s.db.QueryRow(ctx, `select `+projectColumns+` from projects where id = $1`, id))
}

func (s *PostgresStore) ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error) {
	q := `
select ` + projectColumns + `
from projects
where ($1 = '' or client_id = $1)
  and ($2 = '' or freelancer_id = $2)
  and ($3 = '' or status = $3)
order by created_at desc, id`
	rows, err := s.db.Query(ctx, q, f.ClientID, f.FreelancerID, string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// missOrConflict resolves a conditional update that matched no rows.
func (s *PostgresStore) missOrConflict(ctx context.Context, id string, want string) error {
	var status string
	err := s.db.QueryRow(ctx, `select status from projects where id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: project %s is %q, %s", domain.ErrInvalidTransition, id, status, want)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Project, error) {
	q := `
update projects
set status = $3,
    freelancer_id = case when $3 = 'Open' then null else freelancer_id end,
    status_version = status_version + 1,
    updated_at = now()
where id = $1 and status = $2
returning ` + projectColumns
	p, err := scanProject(s.db.QueryRow(ctx, q, id, string(from), string(to)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.missOrConflict(ctx, id, fmt.Sprintf("expected %q", from))
	}
	return p, err
}

func (s *PostgresStore) Suspend(ctx context.Context, id string) (*domain.Project, error) {
	q := `
update projects
set suspended_from = status, status = 'Suspended', status_version = status_version + 1, updated_at = now()
where id = $1 and status in ('Open', 'Active', 'Pending Approval')
returning ` + projectColumns
	p, err := scanProject(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.missOrConflict(ctx, id, "cannot be suspended")
	}
	return p, err
}

func (s *PostgresStore) Reinstate(ctx context.Context, id string) (*domain.Project, error) {
	q := `
update projects
set status = suspended_from, suspended_from = null, status_version = status_version + 1, updated_at = now()
where id = $1 and status = 'Suspended' and suspended_from is not null
returning ` + projectColumns
	p, err := scanProject(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.missOrConflict(ctx, id, "not suspended")
	}
	return p, err
}

func (s *PostgresStore) DeleteOpenProject(ctx context.Context, id string) (int, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `select status from projects where id = $1 for update`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if domain.Status(status) != domain.StatusOpen {
		return 0, fmt.Errorf("%w: only Open projects can be deleted", domain.ErrInvalidTransition)
	}

	tag, err := tx.Exec(ctx, `delete from applications where project_id = $1`, id)
	if err != nil {
		return 0, err
	}
	// messages go with the project through on delete cascade
	if _, err := tx.Exec(ctx, `delete from projects where id = $1`, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateApplication(ctx context.Context, a *domain.Application) (*domain.Application, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// share lock keeps the project Open until this insert commits
	var status string
	err = tx.QueryRow(ctx, `select status from projects where id = $1 for share`, a.ProjectID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if domain.Status(status) != domain.StatusOpen {
		return nil, fmt.Errorf("%w: project is %q and no longer accepts applications", domain.ErrInvalidTransition, status)
	}

	q := `
insert into applications (id, project_id, freelancer_id, proposal, proposed_budget, status)
values ($1, $2, $3, $4, $5, 'Pending')
returning ` + applicationColumns
	out, err := scanApplication(tx.QueryRow(ctx, q, id, a.ProjectID, a.FreelancerID, a.Proposal, a.ProposedBudget))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: already applied to this project", domain.ErrInvalidInput)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	return scanApplication(s.db.QueryRow(ctx, `select `+applicationColumns+` from applications where id = $1`, id))
}

func (s *PostgresStore) ListApplications(ctx context.Context, f ApplicationFilter) ([]domain.Application, error) {
	q := `
select ` + applicationColumns + `
from applications
where ($1 = '' or project_id = $1)
  and ($2 = '' or freelancer_id = $2)
  and ($3 = '' or status = $3)
order by created_at desc, id`
	rows, err := s.db.Query(ctx, q, f.ProjectID, f.FreelancerID, string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Application, 0, 8)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// AcceptApplication locks the project before the application so that two
// concurrent accepts on the same project serialize on the project row; the
// loser then observes Active and fails without writing.
func (s *PostgresStore) AcceptApplication(ctx context.Context, id string) (*domain.Application, *domain.Project, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var projectID string
	err = tx.QueryRow(ctx, `select project_id from applications where id = $1`, id).Scan(&projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var projectStatus string
	err = tx.QueryRow(ctx, `select status from projects where id = $1 for update`, projectID).Scan(&projectStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if domain.Status(projectStatus) != domain.StatusOpen {
		return nil, nil, fmt.Errorf("%w: project is %q", domain.ErrInvalidTransition, projectStatus)
	}

	var appStatus string
	err = tx.QueryRow(ctx, `select status from applications where id = $1 for update`, id).Scan(&appStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if domain.ApplicationStatus(appStatus) != domain.ApplicationPending {
		return nil, nil, fmt.Errorf("%w: application is %q", domain.ErrInvalidTransition, appStatus)
	}

	app, err := scanApplication(tx.QueryRow(ctx, `
update applications
set status = 'Accepted', updated_at = now()
where id = $1
returning `+applicationColumns, id))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, nil, fmt.Errorf("%w: project already has an accepted application", domain.ErrInvalidTransition)
		}
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `
update applications
set status = 'Rejected', updated_at = now()
where project_id = $1 and id <> $2 and status = 'Pending'
`, projectID, id); err != nil {
		return nil, nil, err
	}

	project, err := scanProject(tx.QueryRow(ctx, `
update projects
set status = 'Active', freelancer_id = $2, status_version = status_version + 1, updated_at = now()
where id = $1 and status = 'Open'
returning `+projectColumns, projectID, app.FreelancerID))
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return app, project, nil
}

func (s *PostgresStore) RejectApplication(ctx context.Context, id string) (*domain.Application, error) {
	a, err := scanApplication(s.db.QueryRow(ctx, `
update applications
set status = 'Rejected', updated_at = now()
where id = $1 and status = 'Pending'
returning `+applicationColumns, id))
	if !errors.Is(err, domain.ErrNotFound) {
		return a, err
	}

	var status string
	err = s.db.QueryRow(ctx, `select status from applications where id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: application is %q", domain.ErrInvalidTransition, status)
}

// AppendMessage bumps the project's message counter and inserts the message in
// one transaction. The row lock taken by the counter update serializes
// concurrent senders on the same project, so seq is gap-free and created_at
// never runs backwards.
func (s *PostgresStore) AppendMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		seq int64
		at  time.Time
	)
	err = tx.QueryRow(ctx, `
update projects
set message_seq = message_seq + 1,
    last_message_at = greatest(clock_timestamp(), coalesce(last_message_at, '-infinity'::timestamptz))
where id = $1
returning message_seq, last_message_at
`, m.ProjectID).Scan(&seq, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out, err := scanMessage(tx.QueryRow(ctx, `
insert into messages (id, project_id, sender_id, message_type, text, file_url, file_name, seq, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
returning `+messageColumns,
		uuid.NewString(), m.ProjectID, m.SenderID, string(m.Type), m.Text, m.FileURL, m.FileName, seq, at))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, projectID string, afterSeq int64) ([]domain.Message, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `select exists(select 1 from projects where id = $1)`, projectID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	rows, err := s.db.Query(ctx, `
select `+messageColumns+`
from messages
where project_id = $1 and seq > $2
order by created_at asc, seq asc
`, projectID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Message, 0, 32)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LastMessageSeq(ctx context.Context, projectID string) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `select message_seq from projects where id = $1`, projectID).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return seq, err
}

func (s *PostgresStore) FindViolations(ctx context.Context) ([]domain.Violation, error) {
	rows, err := s.db.Query(ctx, `
select id, 'freelancer_assignment',
       format('project %s: status %s with freelancer set=%s', id, status, freelancer_id is not null)
from projects
where (freelancer_id is not null)
   <> (coalesce(suspended_from, status) in ('Active', 'Pending Approval', 'Completed'))
union all
select project_id, 'multiple_accepted_applications', count(*) || ' accepted applications'
from applications
where status = 'Accepted'
group by project_id
having count(*) > 1
order by 1, 2
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Violation
	for rows.Next() {
		var v domain.Violation
		if err := rows.Scan(&v.ProjectID, &v.Kind, &v.Detail); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
