package postgres

import (
	"context"

	"github.com/rikhii20/DoKaka/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	var out model.User
	err := s.pool.QueryRow(ctx, `
		insert into public.users (name, username, password_hash)
		values ($1, $2, $3)
		returning id::text, name, username, password_hash, created_at, updated_at
	`, u.Name, u.Username, u.PasswordHash).Scan(
		&out.ID,
		&out.Name,
		&out.Username,
		&out.PasswordHash,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return model.User{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		select id::text, name, username, password_hash, created_at, updated_at
		from public.users
		where username = $1
	`, username).Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &u, nil
}
