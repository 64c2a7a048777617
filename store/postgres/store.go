package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/password"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	usersTable         = "users"
	relationshipsTable = "relationships"

	relationshipActive = "active"

	uniqueViolation = "23505"
)

var userColumns = []string{"id", "email", "password_hash", "name", "nickname", "is_active"}

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements authcore.CredentialStore and authcore.RelationshipChecker
// over the users and relationships tables.
type Store struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	hasher  password.Hasher
}

var (
	_ authcore.CredentialStore     = (*Store)(nil)
	_ authcore.RelationshipChecker = (*Store)(nil)
)

// New wires a store over exec (a *pgxpool.Pool in production). hasher
// verifies stored password hashes.
func New(exec pgExecutor, hasher password.Hasher) *Store {
	return &Store{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		hasher:  hasher,
	}
}

// WithTx returns a store operating within tx.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	if tx == nil {
		return s
	}
	return &Store{exec: tx, builder: s.builder, hasher: s.hasher}
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (*authcore.UserCredential, error) {
	return s.findOne(ctx, squirrel.Expr("lower(email) = ?", limiters.NormalizeIdentity(email)))
}

func (s *Store) FindActiveUserByID(ctx context.Context, id string) (*authcore.UserCredential, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, authcore.ErrUserNotFound
	}
	return s.findOne(ctx, squirrel.Eq{"id": id})
}

func (s *Store) findOne(ctx context.Context, pred squirrel.Sqlizer) (*authcore.UserCredential, error) {
	stmt, args, err := s.builder.
		Select(userColumns...).
		From(usersTable).
		Where(pred).
		Where(squirrel.Eq{"deleted_at": nil}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var u authcore.UserCredential
	err = s.exec.QueryRow(ctx, stmt, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Nickname,
		&u.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authcore.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *Store) VerifyPassword(_ context.Context, user *authcore.UserCredential, password string) (bool, error) {
	if user == nil {
		return false, nil
	}
	return s.hasher.Verify(password, user.PasswordHash)
}

// CreateUser inserts an active user. A unique violation on the email index
// becomes authcore.ErrEmailAlreadyInUse.
func (s *Store) CreateUser(ctx context.Context, in authcore.NewCredential) (*authcore.UserCredential, error) {
	u := &authcore.UserCredential{
		ID:           uuid.NewString(),
		Email:        limiters.NormalizeIdentity(in.Email),
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Nickname:     in.Nickname,
		IsActive:     true,
	}

	stmt, args, err := s.builder.
		Insert(usersTable).
		Columns(userColumns...).
		Values(u.ID, u.Email, u.PasswordHash, u.Name, u.Nickname, u.IsActive).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, authcore.ErrEmailAlreadyInUse
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// HasActiveRelationship reports whether userID is on either side of an
// active relationship.
func (s *Store) HasActiveRelationship(ctx context.Context, userID string) (bool, error) {
	stmt, args, err := s.builder.
		Select("1").
		From(relationshipsTable).
		Where(squirrel.Or{
			squirrel.Eq{"user_id": userID},
			squirrel.Eq{"partner_id": userID},
		}).
		Where(squirrel.Eq{"status": relationshipActive}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select relationship sql: %w", err)
	}

	var one int
	err = s.exec.QueryRow(ctx, stmt, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select relationship: %w", err)
	}
	return true, nil
}
