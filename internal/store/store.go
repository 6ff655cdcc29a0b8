// Package store persists application users, partner websites and the
// per-user website access grants in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist or is soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrEmailExists is returned when a user email would collide.
	ErrEmailExists = errors.New("email already exists")
)

const uniqueViolation = "23505"

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// User is an application account. Role is empty when unset; an empty role
// grants the same website visibility as admin (carried over from the
// original access rules). Deleted users are filtered out of every query.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Deleted      bool      `json:"deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const userColumns = "id, name, last_name, email, password, COALESCE(role, ''), deleted, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.Deleted, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateUser inserts a new user with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, name, lastName, email, passwordHash, role string) (User, error) {
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (name, last_name, email, password, role) VALUES ($1,$2,$3,$4,NULLIF($5,'')) RETURNING `+userColumns,
		name, lastName, strings.ToLower(email), passwordHash, role)
	u, err := scanUser(row)
	if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == uniqueViolation {
		return User{}, ErrEmailExists
	}
	return u, err
}

// GetUserByID fetches a live user by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1 AND deleted=FALSE`, id)
	return scanUser(row)
}

// GetUserByEmail fetches a live user by email, including the password hash
// for credential checks.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1 AND deleted=FALSE`, strings.ToLower(email))
	return scanUser(row)
}

// ListUsers returns all live users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	return s.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE deleted=FALSE ORDER BY id`)
}

// ListUsersByRole returns live users with the given role.
func (s *Store) ListUsersByRole(ctx context.Context, role string) ([]User, error) {
	return s.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 AND deleted=FALSE ORDER BY id`, role)
}

func (s *Store) listUsers(ctx context.Context, query string, args ...interface{}) ([]User, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserParams are the optional fields of a partial user update. Nil
// pointers leave the column untouched.
type UpdateUserParams struct {
	Name         *string
	LastName     *string
	Email        *string
	PasswordHash *string
	Role         *string
}

// UpdateUser applies a partial update and returns the updated row.
func (s *Store) UpdateUser(ctx context.Context, id int64, p UpdateUserParams) (User, error) {
	var email *string
	if p.Email != nil {
		lower := strings.ToLower(*p.Email)
		email = &lower
	}
	row := s.DB.QueryRowContext(ctx,
		`UPDATE users SET
			name=COALESCE($2, name),
			last_name=COALESCE($3, last_name),
			email=COALESCE($4, email),
			password=COALESCE($5, password),
			role=COALESCE($6, role),
			updated_at=NOW()
		 WHERE id=$1 AND deleted=FALSE RETURNING `+userColumns,
		id, p.Name, p.LastName, email, p.PasswordHash, p.Role)
	u, err := scanUser(row)
	if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == uniqueViolation {
		return User{}, ErrEmailExists
	}
	return u, err
}

// SoftDeleteUser marks a user deleted and returns the final row state.
func (s *Store) SoftDeleteUser(ctx context.Context, id int64) (User, error) {
	row := s.DB.QueryRowContext(ctx,
		`UPDATE users SET deleted=TRUE, updated_at=NOW() WHERE id=$1 AND deleted=FALSE RETURNING `+userColumns, id)
	return scanUser(row)
}

// Website is a partner site users can submit credentials for. WebsiteID is
// the canonical lowercased identifier used to derive the partner API URL.
type Website struct {
	ID        int64     `json:"id"`
	WebsiteID string    `json:"website_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const websiteColumns = "id, website_id, name, COALESCE(url, ''), active, created_at, updated_at"

func scanWebsite(row interface{ Scan(...interface{}) error }) (Website, error) {
	var w Website
	err := row.Scan(&w.ID, &w.WebsiteID, &w.Name, &w.URL, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Website{}, ErrNotFound
	}
	if err != nil {
		return Website{}, err
	}
	return w, nil
}

// ListWebsites returns all active websites ordered by id.
func (s *Store) ListWebsites(ctx context.Context) ([]Website, error) {
	return s.listWebsites(ctx, `SELECT `+websiteColumns+` FROM websites WHERE active=TRUE ORDER BY id`)
}

// ListWebsitesForUser returns the active websites visible to a user. Admins
// and users with no role see everything; everyone else only sees sites they
// hold an access grant for.
func (s *Store) ListWebsitesForUser(ctx context.Context, userID int64, role string) ([]Website, error) {
	if role == "admin" || role == "" {
		return s.ListWebsites(ctx)
	}
	return s.listWebsites(ctx,
		`SELECT `+websiteColumns+` FROM websites w
		 JOIN user_website_access a ON a.website_id = w.id
		 WHERE a.user_id=$1 AND w.active=TRUE ORDER BY w.id`, userID)
}

func (s *Store) listWebsites(ctx context.Context, query string, args ...interface{}) ([]Website, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sites []Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, w)
	}
	return sites, rows.Err()
}

// GetWebsiteByWebsiteID fetches an active website by its canonical
// identifier, case-insensitively.
func (s *Store) GetWebsiteByWebsiteID(ctx context.Context, websiteID string) (Website, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE LOWER(website_id)=LOWER($1) AND active=TRUE`, websiteID)
	return scanWebsite(row)
}

// HasWebsiteAccess reports whether the user holds an access grant for the
// given website identifier.
func (s *Store) HasWebsiteAccess(ctx context.Context, userID int64, websiteID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM user_website_access a
			JOIN websites w ON w.id = a.website_id
			WHERE a.user_id=$1 AND LOWER(w.website_id)=LOWER($2) AND w.active=TRUE
		)`, userID, websiteID).Scan(&exists)
	return exists, err
}
