package models

import "time"

// Level is a year or stage inside a department.
type Level struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LevelDetail adds the department name.
type LevelDetail struct {
	Level
	DepartmentName string `db:"department_name" json:"department_name"`
}

// HierarchyPath renders "department / level".
func (l LevelDetail) HierarchyPath() string {
	return l.DepartmentName + " / " + l.Name
}

// LevelFilter defines filter criteria for listing levels.
type LevelFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
