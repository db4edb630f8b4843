package models

import (
	"errors"
	"fmt"
	"time"
)

// Session is a teacher booked for a subject over the half-open interval [StartTime, EndTime).
type Session struct {
	ID        string    `db:"id" json:"id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the length of the session.
func (s Session) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Overlaps reports whether the session shares an instant with [start, end).
// Touching endpoints do not overlap.
func (s Session) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

// SessionDetail joins display names for listing and statistics.
type SessionDetail struct {
	Session
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	TeacherID string
	SubjectID string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// OverlapQuery selects sessions intersecting [Start, End). An empty TeacherID
// spans every teacher; ExcludeID skips the session being rescheduled.
type OverlapQuery struct {
	TeacherID string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// SessionConflictError is returned when a proposed interval collides with
// existing sessions of the same teacher.
type SessionConflictError struct {
	TeacherID string    `json:"teacher_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Conflicts []Session `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *SessionConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("teacher %s has %d session(s) overlapping %s - %s",
		e.TeacherID, len(e.Conflicts), e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
}

// AsSessionConflict extracts a conflict from an error chain.
func AsSessionConflict(err error) (*SessionConflictError, bool) {
	var conflict *SessionConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// SessionStatistics aggregates sessions falling inside a date range.
type SessionStatistics struct {
	From                   time.Time      `json:"from"`
	To                     time.Time      `json:"to"`
	TotalSessions          int            `json:"total_sessions"`
	TotalHours             float64        `json:"total_hours"`
	SessionsBySubject      map[string]int `json:"sessions_by_subject"`
	SessionsByTeacher      map[string]int `json:"sessions_by_teacher"`
	AverageSessionDuration float64        `json:"average_session_duration"`
}

// TeacherSessionStatistics aggregates one teacher's sessions inside a date range.
type TeacherSessionStatistics struct {
	TeacherID              string             `json:"teacher_id"`
	TeacherName            string             `json:"teacher_name"`
	From                   time.Time          `json:"from"`
	To                     time.Time          `json:"to"`
	TotalSessions          int                `json:"total_sessions"`
	TotalHours             float64            `json:"total_hours"`
	SessionsBySubject      map[string]int     `json:"sessions_by_subject"`
	HoursBySubject         map[string]float64 `json:"hours_by_subject"`
	AverageSessionDuration float64            `json:"average_session_duration"`
}

// SessionEvent is published after a session write.
type SessionEvent struct {
	Type      string    `json:"type"`
	Session   Session   `json:"session"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SessionEventCreated = "session.created"
	SessionEventUpdated = "session.updated"
	SessionEventDeleted = "session.deleted"
)
