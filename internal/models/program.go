package models

import "time"

// Program owns a group of classes and the subjects they study.
// Membership lives on classes.program_id and subjects.program_id.
type Program struct {
	ID          string    `db:"id" json:"id"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramDetail is a program with its members resolved.
type ProgramDetail struct {
	Program
	Classes  []Class   `json:"classes"`
	Subjects []Subject `json:"subjects"`
}

// ProgramFilter defines filter criteria for listing programs.
type ProgramFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ProgramStatistics summarises the members of a program.
type ProgramStatistics struct {
	ProgramID    string   `json:"program_id"`
	Description  string   `json:"description"`
	ClassCount   int      `json:"class_count"`
	SubjectCount int      `json:"subject_count"`
	ClassNames   []string `json:"class_names"`
	SubjectNames []string `json:"subject_names"`
}
