package models

import (
	"strings"
	"time"
)

// Gender of an account holder.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// User is an account record. Role is the variant tag; ClassID and ParentID are
// only meaningful for STUDENT accounts, the taught sessions of a TEACHER are
// derived from the sessions table.
type User struct {
	ID               string     `db:"id" json:"id"`
	Username         string     `db:"username" json:"username"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	CIN              string     `db:"cin" json:"cin"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	BirthDate        *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	BirthPlace       *string    `db:"birth_place" json:"birth_place,omitempty"`
	Address          *string    `db:"address" json:"address,omitempty"`
	Gender           *Gender    `db:"gender" json:"gender,omitempty"`
	Photo            *string    `db:"photo" json:"photo,omitempty"`
	Role             UserRole   `db:"role" json:"role"`
	Enabled          bool       `db:"enabled" json:"enabled"`
	Locked           bool       `db:"locked" json:"locked"`
	ClassID          *string    `db:"class_id" json:"class_id,omitempty"`
	ParentID         *string    `db:"parent_id" json:"parent_id,omitempty"`
	ResetToken       *string    `db:"reset_token" json:"-"`
	ResetTokenExpiry *time.Time `db:"reset_token_expiry" json:"-"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
	LastLoginIP      *string    `db:"last_login_ip" json:"last_login_ip,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// StudentDetails returns the student variant fields, ok is false for other roles.
func (u *User) StudentDetails() (StudentDetails, bool) {
	if u.Role != RoleStudent {
		return StudentDetails{}, false
	}
	return StudentDetails{ClassID: u.ClassID, ParentID: u.ParentID}, true
}

// StudentDetails carries the fields specific to STUDENT accounts.
type StudentDetails struct {
	ClassID  *string `json:"class_id,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// TeacherProfile is a TEACHER account with its scheduled sessions.
type TeacherProfile struct {
	User
	Sessions []Session `json:"sessions"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Enabled   *bool
	Locked    *bool
	ClassID   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UserStatusUpdate toggles the enabled/locked flags of an account.
type UserStatusUpdate struct {
	Enabled *bool  `json:"enabled"`
	Locked  *bool  `json:"locked"`
	Reason  string `json:"reason" validate:"omitempty,max=255"`
}

// UserStatistics summarises the account population.
type UserStatistics struct {
	TotalUsers           int              `json:"total_users"`
	ActiveUsers          int              `json:"active_users"`
	LockedUsers          int              `json:"locked_users"`
	DisabledUsers        int              `json:"disabled_users"`
	UsersByRole          map[UserRole]int `json:"users_by_role"`
	RecentlyCreatedUsers int              `json:"recently_created_users"`
	NeverLoggedInUsers   int              `json:"never_logged_in_users"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
