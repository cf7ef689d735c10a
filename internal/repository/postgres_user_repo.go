package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/userauth/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// stringDataRightTruncation は文字列が列の長さを超えた場合のSQLSTATE。
const stringDataRightTruncation = "22001"

const userColumns = `id, name, email, password, profile_picture, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成する。
// IDはUUIDv4を割り当て、CreatedAt/UpdatedAtは現在時刻で上書きする。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password, profile_picture, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, user.Name, user.Email, user.Password, user.ProfilePicture, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		if isValueTooLong(err) {
			return ErrValueTooLong
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// UUIDとして解釈できないIDも「見つからない」として扱う。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Update は指定されたフィールドのみをCOALESCEで部分更新する。
// 読み取りと書き込みを1ステートメントで行うため、find-then-updateの競合は発生しない。
func (r *PostgresUserRepo) Update(ctx context.Context, id string, patch UserPatch) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET
		   name            = COALESCE($2, name),
		   email           = COALESCE($3, email),
		   password        = COALESCE($4, password),
		   profile_picture = COALESCE($5, profile_picture),
		   updated_at      = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, patch.Name, patch.Email, patch.Password, patch.ProfilePicture,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		if isValueTooLong(err) {
			return nil, ErrValueTooLong
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanUser は1行をmodel.Userに読み込む。行がない場合はnilを返す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Password,
		&user.ProfilePicture,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// isUniqueViolation はエラーがPostgreSQLの一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	return hasSQLState(err, uniqueViolation)
}

// isValueTooLong はエラーが列の長さ超過かを判定する。
func isValueTooLong(err error) bool {
	return hasSQLState(err, stringDataRightTruncation)
}

func hasSQLState(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
