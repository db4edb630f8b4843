package models

import "time"

// Class is a group of students at a level, optionally following a program.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	LevelID   string    `db:"level_id" json:"level_id"`
	ProgramID *string   `db:"program_id" json:"program_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	LevelID      string
	DepartmentID string
	ProgramID    string
	SubjectID    string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
