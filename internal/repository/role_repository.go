package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/model"
)

type RoleRepo struct{ Q database.Querier }

func NewRoleRepo(q database.Querier) *RoleRepo { return &RoleRepo{Q: q} }

// FindByName resolves a role by case-insensitive substring match on its
// name. Exact matches win over longer names containing the input, so
// "ADMIN" never resolves to SYSTEMADMIN.
func (r *RoleRepo) FindByName(ctx context.Context, name model.RoleName) (model.Role, error) {
	needle := strings.TrimSpace(string(name))
	if needle == "" {
		return model.Role{}, ErrNotFound
	}
	var (
		role  model.Role
		rname string
	)
	err := r.Q.QueryRowContext(ctx,
		`SELECT id, name FROM roles
		  WHERE name LIKE ?
		  ORDER BY (UPPER(name) = UPPER(?)) DESC, CHAR_LENGTH(name) ASC
		  LIMIT 1`,
		"%"+escapeLike(needle)+"%", needle).Scan(&role.ID, &rname)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Role{}, ErrNotFound
	}
	if err != nil {
		return model.Role{}, err
	}
	role.Name = model.RoleName(strings.ToUpper(rname))
	return role, nil
}

// FindByID fetches a role row by id.
func (r *RoleRepo) FindByID(ctx context.Context, id uint8) (model.Role, error) {
	var (
		role  model.Role
		rname string
	)
	err := r.Q.QueryRowContext(ctx, "SELECT id, name FROM roles WHERE id = ?", id).Scan(&role.ID, &rname)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Role{}, ErrNotFound
	}
	if err != nil {
		return model.Role{}, err
	}
	role.Name = model.RoleName(strings.ToUpper(rname))
	return role, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
