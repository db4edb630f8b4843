package models

import "time"

// ActivityType enumerates the kinds of graded work.
type ActivityType string

const (
	ActivityHomework     ActivityType = "HOMEWORK"
	ActivityExam         ActivityType = "EXAM"
	ActivityQuiz         ActivityType = "QUIZ"
	ActivityProject      ActivityType = "PROJECT"
	ActivityPresentation ActivityType = "PRESENTATION"
)

// Valid returns true when the type is a supported value.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityHomework, ActivityExam, ActivityQuiz, ActivityProject, ActivityPresentation:
		return true
	default:
		return false
	}
}

// Activity is a piece of work inside a subject that can be graded.
type Activity struct {
	ID          string       `db:"id" json:"id"`
	Type        ActivityType `db:"type" json:"type"`
	Title       string       `db:"title" json:"title"`
	Date        *time.Time   `db:"activity_date" json:"date,omitempty"`
	Resources   *string      `db:"resources" json:"resources,omitempty"`
	Description *string      `db:"description" json:"description,omitempty"`
	SubjectID   string       `db:"subject_id" json:"subject_id"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// ActivityFilter defines filter criteria for listing activities.
type ActivityFilter struct {
	SubjectID string
	Type      ActivityType
	From      *time.Time
	To        *time.Time
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
