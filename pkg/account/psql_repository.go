package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	accountsTable      = "accounts"
	uniqueViolationErr = "23505"
)

var accountColumns = []string{
	"id", "email", "password_hash", "is_active", "failed_attempts",
	"locked_until", "last_login_at", "password_changed_at", "token_version",
	"first_name", "last_name", "bio", "created_at", "updated_at",
}

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db      DBTX
	builder squirrel.StatementBuilderType
}

// NewPostgresRepository creates a new PostgreSQL account repository
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindByEmail finds an account by its normalized email
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	stmt, args, err := r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"email": NormalizeEmail(email)}).
		ToSql()
	if err != nil {
		return Account{}, fmt.Errorf("build select account sql: %w", err)
	}
	return scanAccount(r.db.QueryRow(ctx, stmt, args...))
}

// FindByID finds an account by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	stmt, args, err := r.selectByID(id).ToSql()
	if err != nil {
		return Account{}, fmt.Errorf("build select account sql: %w", err)
	}
	return scanAccount(r.db.QueryRow(ctx, stmt, args...))
}

// Create inserts a new account. A duplicate email yields ErrDuplicateEmail.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) (Account, error) {
	acct.Email = NormalizeEmail(acct.Email)
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}

	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(accountValues(acct)...).
		ToSql()
	if err != nil {
		return Account{}, fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrDuplicateEmail
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acct, nil
}

// Save overwrites an existing account
func (r *PostgresRepository) Save(ctx context.Context, acct Account) error {
	return r.save(ctx, r.db, acct)
}

// Update locks the account row with SELECT ... FOR UPDATE, applies fn and
// writes the result in the same transaction.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (Account, error) {
	var result Account
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		stmt, args, err := r.selectByID(id).Suffix("FOR UPDATE").ToSql()
		if err != nil {
			return fmt.Errorf("build select account for update sql: %w", err)
		}

		current, err := scanAccount(tx.QueryRow(ctx, stmt, args...))
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		next.ID = id

		if err := r.save(ctx, tx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return result, nil
}

func (r *PostgresRepository) selectByID(id uuid.UUID) squirrel.SelectBuilder {
	return r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": id})
}

func (r *PostgresRepository) save(ctx context.Context, db DBTX, acct Account) error {
	acct.Email = NormalizeEmail(acct.Email)

	q := r.builder.Update(accountsTable)
	values := accountValues(acct)
	// skip id and created_at
	for i, col := range accountColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		q = q.Set(col, values[i])
	}

	stmt, args, err := q.Where(squirrel.Eq{"id": acct.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := db.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func accountValues(a Account) []interface{} {
	return []interface{}{
		a.ID, a.Email, a.PasswordHash, a.IsActive, a.FailedAttempts,
		a.LockedUntil, a.LastLoginAt, a.PasswordChangedAt, a.TokenVersion,
		a.Profile.FirstName, a.Profile.LastName, a.Profile.Bio, a.CreatedAt, a.UpdatedAt,
	}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.IsActive, &a.FailedAttempts,
		&a.LockedUntil, &a.LastLoginAt, &a.PasswordChangedAt, &a.TokenVersion,
		&a.Profile.FirstName, &a.Profile.LastName, &a.Profile.Bio, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErr
}
