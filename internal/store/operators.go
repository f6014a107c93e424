package store

import (
	"context"

	"github.com/example/visa-checker/internal/db"
)

type Operator struct {
	ID             int64
	Username       string
	PasswordBcrypt string
}

func (s *Store) CreateOperator(ctx context.Context, username, passwordBcrypt string) error {
	return s.db.Exec(ctx,
		`INSERT INTO operators (username, password_bcrypt) VALUES ($1, $2)`,
		username, passwordBcrypt)
}

func (s *Store) GetOperator(ctx context.Context, username string) (Operator, error) {
	var op Operator
	err := s.db.QueryRow(ctx,
		`SELECT id, username, password_bcrypt FROM operators WHERE username=$1`,
		username).Scan(&op.ID, &op.Username, &op.PasswordBcrypt)
	if err != nil {
		return Operator{}, db.WrapNotFound(err)
	}
	return op, nil
}
