package models

import "time"

const (
	GradeMin = 0.0
	GradeMax = 20.0
)

// Grade is a student's mark for an activity on a 0-20 scale.
type Grade struct {
	ID         string    `db:"id" json:"id"`
	Value      float64   `db:"value" json:"value"`
	StudentID  string    `db:"student_id" json:"student_id"`
	ActivityID string    `db:"activity_id" json:"activity_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter defines filter criteria for listing grades.
type GradeFilter struct {
	StudentID  string
	ActivityID string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// GradeAverage is the mean mark of a student or an activity.
type GradeAverage struct {
	Count   int     `db:"count" json:"count"`
	Average float64 `db:"average" json:"average"`
}
