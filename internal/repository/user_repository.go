package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-api/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, cin, phone, birth_date, birth_place, address, gender, photo, role, enabled, locked, class_id, parent_id, reset_token, reset_token_expiry, last_login, last_login_ip, created_at, updated_at`

// UserRepository provides database access for accounts, refresh tokens and audit logs.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) findOne(ctx context.Context, label, where string, arg interface{}) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s LIMIT 1", userColumns, where)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by %s: %w", label, err)
	}
	return &user, nil
}

// FindByUsername returns a user by login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", "username = $1", username)
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", "LOWER(email) = LOWER($1)", email)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id", "id = $1", id)
}

// FindByResetToken returns the user owning a password reset token.
func (r *UserRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, "reset token", "reset_token = $1", token)
}

// ExistsByUsername reports whether the username is taken.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username)
}

// ExistsByEmail reports whether the email is taken.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))", email)
}

// ExistsByCIN reports whether the national identity number is taken.
func (r *UserRepository) ExistsByCIN(ctx context.Context, cin string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE UPPER(cin) = UPPER($1))", cin)
}

// ExistsWithRole reports whether id names an account of the given role.
func (r *UserRepository) ExistsWithRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND role = $2)", id, role)
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return exists, nil
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time, ip string) error {
	const query = `UPDATE users SET last_login = $2, last_login_ip = $3, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ip); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword stores a new hash and clears any pending reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expiry = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetResetToken stores a password reset token with its expiry.
func (r *UserRepository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	const query = `UPDATE users SET reset_token = $2, reset_token_expiry = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, expiry, time.Now().UTC()); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var b conditionBuilder
	if filter.Role != nil {
		b.add("role = ?", *filter.Role)
	}
	if filter.Enabled != nil {
		b.add("enabled = ?", *filter.Enabled)
	}
	if filter.Locked != nil {
		b.add("locked = ?", *filter.Locked)
	}
	if filter.ClassID != "" {
		b.add("class_id = ?", filter.ClassID)
	}
	if filter.Search != "" {
		b.add("(LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name || ' ' || last_name) LIKE ?)", likePattern(filter.Search))
	}
	base := b.where("FROM users WHERE 1=1")

	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{
		"username":   "username",
		"email":      "email",
		"last_name":  "last_name",
		"created_at": "created_at",
		"last_login": "last_login",
	}, "created_at")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s %s %s LIMIT %d OFFSET %d", userColumns, base, order, size, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// ListByRole returns all accounts of a role ordered by name.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE role = $1 ORDER BY last_name, first_name", userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// ListStudentsByClass returns the students enrolled in a class.
func (r *UserRepository) ListStudentsByClass(ctx context.Context, classID string) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE role = 'STUDENT' AND class_id = $1 ORDER BY last_name, first_name", userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, classID); err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	return users, nil
}

// CountByRole counts accounts of a role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return total, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, username, email, password_hash, first_name, last_name, cin, phone, birth_date, birth_place, address, gender, photo, role, enabled, locked, class_id, parent_id, created_at, updated_at)
VALUES (:id, :username, :email, :password_hash, :first_name, :last_name, :cin, :phone, :birth_date, :birth_place, :address, :gender, :photo, :role, :enabled, :locked, :class_id, :parent_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateStatus sets the enabled and locked flags.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, enabled, locked bool) error {
	const query = `UPDATE users SET enabled = $2, locked = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, enabled, locked, time.Now().UTC()); err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return nil
}

// Delete removes an account.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res)
}

// Statistics aggregates the account population. since bounds "recently created".
func (r *UserRepository) Statistics(ctx context.Context, since time.Time) (*models.UserStatistics, error) {
	const totalsQuery = `SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE enabled AND NOT locked) AS active,
	COUNT(*) FILTER (WHERE locked) AS locked,
	COUNT(*) FILTER (WHERE NOT enabled) AS disabled,
	COUNT(*) FILTER (WHERE created_at >= $1) AS recent,
	COUNT(*) FILTER (WHERE last_login IS NULL) AS never_logged_in
FROM users`
	var totals struct {
		Total         int `db:"total"`
		Active        int `db:"active"`
		Locked        int `db:"locked"`
		Disabled      int `db:"disabled"`
		Recent        int `db:"recent"`
		NeverLoggedIn int `db:"never_logged_in"`
	}
	if err := r.db.GetContext(ctx, &totals, totalsQuery, since); err != nil {
		return nil, fmt.Errorf("user statistics: %w", err)
	}

	var byRole []struct {
		Role  models.UserRole `db:"role"`
		Count int             `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &byRole, `SELECT role, COUNT(*) AS count FROM users GROUP BY role`); err != nil {
		return nil, fmt.Errorf("user statistics by role: %w", err)
	}

	stats := &models.UserStatistics{
		TotalUsers:           totals.Total,
		ActiveUsers:          totals.Active,
		LockedUsers:          totals.Locked,
		DisabledUsers:        totals.Disabled,
		RecentlyCreatedUsers: totals.Recent,
		NeverLoggedInUsers:   totals.NeverLoggedIn,
		UsersByRole:          make(map[models.UserRole]int, len(byRole)),
	}
	for _, row := range byRole {
		stats.UsersByRole[row.Role] = row.Count
	}
	return stats, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
