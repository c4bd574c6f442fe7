package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	SetRoles(ctx context.Context, id int64, roles []domain.Role) error
	Delete(ctx context.Context, id int64) error
}

type PGAccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) AccountRepository {
	return &PGAccountRepository{db: db}
}

const accountCols = `id, email, user_name, password_hash, roles, created_at`

func scanAccount(row rowScanner, a *domain.Account) error {
	var roles []string
	if err := row.Scan(&a.ID, &a.Email, &a.UserName, &a.PasswordHash, &roles, &a.CreatedAt); err != nil {
		return err
	}
	a.Roles = make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		a.Roles = append(a.Roles, domain.Role(r))
	}
	return nil
}

func roleNames(roles []domain.Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return names
}

func (r *PGAccountRepository) Create(ctx context.Context, a *domain.Account) error {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (email, user_name, password_hash, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, a.Email, a.UserName, a.PasswordHash, roleNames(a.Roles))
	return mapError(row.Scan(&a.ID, &a.CreatedAt), "create account")
}

func (r *PGAccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	if err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1`, id), &a); err != nil {
		return nil, mapError(err, fmt.Sprintf("account %d", id))
	}
	return &a, nil
}

func (r *PGAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var a domain.Account
	if err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE lower(email)=lower($1)`, email), &a); err != nil {
		return nil, mapError(err, "account by email")
	}
	return &a, nil
}

func (r *PGAccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountCols+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list accounts")
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var a domain.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PGAccountRepository) SetRoles(ctx context.Context, id int64, roles []domain.Role) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET roles=$2 WHERE id=$1`, id, roleNames(roles))
	if err != nil {
		return mapError(err, fmt.Sprintf("set roles of account %d", id))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete relies on passengers.account_id ON DELETE SET NULL to release claimed profiles.
func (r *PGAccountRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete account %d", id))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

var _ AccountRepository = (*PGAccountRepository)(nil)
