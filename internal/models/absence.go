package models

import "time"

// AbsenceStatus tracks the review state of an absence.
type AbsenceStatus string

const (
	AbsenceStatusPending  AbsenceStatus = "PENDING"
	AbsenceStatusApproved AbsenceStatus = "APPROVED"
	AbsenceStatusRejected AbsenceStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s AbsenceStatus) Valid() bool {
	switch s {
	case AbsenceStatusPending, AbsenceStatusApproved, AbsenceStatusRejected:
		return true
	default:
		return false
	}
}

// Absence records a student missing a day.
type Absence struct {
	ID                string        `db:"id" json:"id"`
	Date              time.Time     `db:"absence_date" json:"date"`
	Justified         bool          `db:"justified" json:"justified"`
	Remark            *string       `db:"remark" json:"remark,omitempty"`
	Status            AbsenceStatus `db:"status" json:"status"`
	JustificationText *string       `db:"justification_text" json:"justification_text,omitempty"`
	StudentID         string        `db:"student_id" json:"student_id"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// AbsenceFilter defines filter criteria for listing absences.
type AbsenceFilter struct {
	StudentID string
	ClassID   string
	Status    AbsenceStatus
	Justified *bool
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentAbsenceStatistics summarises one student's absences.
type StudentAbsenceStatistics struct {
	StudentID             string                `json:"student_id"`
	StudentName           string                `json:"student_name"`
	ClassName             *string               `json:"class_name,omitempty"`
	TotalAbsences         int                   `json:"total_absences"`
	JustifiedAbsences     int                   `json:"justified_absences"`
	UnjustifiedAbsences   int                   `json:"unjustified_absences"`
	JustifiedPercentage   float64               `json:"justified_percentage"`
	UnjustifiedPercentage float64               `json:"unjustified_percentage"`
	AbsencesByStatus      map[AbsenceStatus]int `json:"absences_by_status"`
}

// AbsentStudent is a row of the class ranking.
type AbsentStudent struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	Absences    int    `db:"absences" json:"absences"`
}

// ClassAbsenceStatistics summarises the absences of a class.
type ClassAbsenceStatistics struct {
	ClassID                   string                `json:"class_id"`
	ClassName                 string                `json:"class_name"`
	LevelName                 string                `json:"level_name"`
	TotalStudents             int                   `json:"total_students"`
	TotalAbsences             int                   `json:"total_absences"`
	AverageAbsencesPerStudent float64               `json:"average_absences_per_student"`
	JustifiedAbsences         int                   `json:"justified_absences"`
	UnjustifiedAbsences       int                   `json:"unjustified_absences"`
	JustifiedPercentage       float64               `json:"justified_percentage"`
	UnjustifiedPercentage     float64               `json:"unjustified_percentage"`
	AbsencesByStatus          map[AbsenceStatus]int `json:"absences_by_status"`
	TopAbsentStudents         []AbsentStudent       `json:"top_absent_students"`
}
