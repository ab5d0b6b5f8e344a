package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// Repo reads the user directory. Accounts are created by the identity
// service; this side never writes.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Lookup returns the users with the given ids. Unknown ids are skipped.
func (r *Repo) Lookup(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const q = `
select id, full_name, coalesce(email, ''), role, status
from users
where id = any($1)
order by id;
`
	rows, err := r.db.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0, len(ids))
	for rows.Next() {
		var (
			u    domain.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &role, &u.Status); err != nil {
			return nil, err
		}
		u.Role = domain.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

// StaticDirectory serves a fixed set of users. Used with the in-memory store.
type StaticDirectory map[string]domain.User

func (d StaticDirectory) Lookup(_ context.Context, ids []string) ([]domain.User, error) {
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
