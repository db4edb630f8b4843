package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-api/internal/models"
)

// ErrNotAssociated signals that a class or subject is not a member of the expected program.
var ErrNotAssociated = errors.New("not associated with program")

// ProgramRepository owns the program membership of classes and subjects.
// classes.program_id and subjects.program_id are the only stored side of the relation.
//
// Transactions lock the class row, then the subject row, then programs in id
// order, so concurrent membership changes cannot deadlock.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository creates a new program repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs with optional description search.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	var b conditionBuilder
	if filter.Search != "" {
		b.add("LOWER(description) LIKE ?", likePattern(filter.Search))
	}
	base := b.where("FROM programs WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{"description": "description", "created_at": "created_at"}, "created_at")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.Program
	query := fmt.Sprintf("SELECT id, description, created_at, updated_at %s %s LIMIT %d OFFSET %d", base, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return items, total, nil
}

// FindByID returns a program by id.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	return r.findOne(ctx, "id", `SELECT id, description, created_at, updated_at FROM programs WHERE id = $1`, id)
}

// FindByClass returns the program followed by a class.
func (r *ProgramRepository) FindByClass(ctx context.Context, classID string) (*models.Program, error) {
	const query = `SELECT p.id, p.description, p.created_at, p.updated_at FROM programs p JOIN classes c ON c.program_id = p.id WHERE c.id = $1`
	return r.findOne(ctx, "class", query, classID)
}

// FindBySubject returns the program a subject belongs to.
func (r *ProgramRepository) FindBySubject(ctx context.Context, subjectID string) (*models.Program, error) {
	const query = `SELECT p.id, p.description, p.created_at, p.updated_at FROM programs p JOIN subjects s ON s.program_id = p.id WHERE s.id = $1`
	return r.findOne(ctx, "subject", query, subjectID)
}

// FindShared returns the program linking a class and a subject.
func (r *ProgramRepository) FindShared(ctx context.Context, classID, subjectID string) (*models.Program, error) {
	const query = `SELECT p.id, p.description, p.created_at, p.updated_at
FROM programs p
JOIN classes c ON c.program_id = p.id
JOIN subjects s ON s.program_id = p.id
WHERE c.id = $1 AND s.id = $2`
	return r.findOne(ctx, "class and subject", query, classID, subjectID)
}

func (r *ProgramRepository) findOne(ctx context.Context, label, query string, args ...interface{}) (*models.Program, error) {
	var p models.Program
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find program by %s: %w", label, err)
	}
	return &p, nil
}

// Members lists the classes and subjects of a program.
func (r *ProgramRepository) Members(ctx context.Context, programID string) ([]models.Class, []models.Subject, error) {
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, `SELECT id, name, level_id, program_id, created_at, updated_at FROM classes WHERE program_id = $1 ORDER BY name`, programID); err != nil {
		return nil, nil, fmt.Errorf("list program classes: %w", err)
	}
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, `SELECT id, name, program_id, created_at, updated_at FROM subjects WHERE program_id = $1 ORDER BY name`, programID); err != nil {
		return nil, nil, fmt.Errorf("list program subjects: %w", err)
	}
	return classes, subjects, nil
}

// Create inserts a program.
func (r *ProgramRepository) Create(ctx context.Context, p *models.Program) error {
	return insertProgram(ctx, r.db, p)
}

// Update changes the description of a program.
func (r *ProgramRepository) Update(ctx context.Context, p *models.Program) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE programs SET description = :description, updated_at = :updated_at WHERE id = :id`, p)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a program; its classes and subjects are detached by the foreign keys.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return requireAffected(res)
}

// AssignSubjectToClass puts a class and a subject in the same program. The
// class's program wins, then the subject's; otherwise a program is created
// with description. A program left empty by moving the subject is removed.
func (r *ProgramRepository) AssignSubjectToClass(ctx context.Context, classID, subjectID, description string) (program *models.Program, err error) {
	err = withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		classProgram, err := lockMembership(ctx, tx, "classes", classID)
		if err != nil {
			return err
		}
		subjectProgram, err := lockMembership(ctx, tx, "subjects", subjectID)
		if err != nil {
			return err
		}
		locked, err := lockPrograms(ctx, tx, classProgram, subjectProgram)
		if err != nil {
			return err
		}

		switch {
		case classProgram != nil:
			program = locked[*classProgram]
		case subjectProgram != nil:
			program = locked[*subjectProgram]
		default:
			program = &models.Program{Description: description}
			if err = insertProgram(ctx, tx, program); err != nil {
				return err
			}
		}

		if err = setMembership(ctx, tx, "classes", classID, &program.ID); err != nil {
			return err
		}
		if err = setMembership(ctx, tx, "subjects", subjectID, &program.ID); err != nil {
			return err
		}
		if subjectProgram != nil && *subjectProgram != program.ID {
			if _, err = deleteProgramIfEmpty(ctx, tx, *subjectProgram); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return program, nil
}

// RemoveSubjectFromClass detaches a subject from the class's program. When the
// program has no subjects left the class is detached too, and an empty program
// is deleted. It reports whether the program was deleted.
func (r *ProgramRepository) RemoveSubjectFromClass(ctx context.Context, classID, subjectID string) (deleted bool, err error) {
	err = withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		classProgram, err := lockMembership(ctx, tx, "classes", classID)
		if err != nil {
			return err
		}
		subjectProgram, err := lockMembership(ctx, tx, "subjects", subjectID)
		if err != nil {
			return err
		}
		if classProgram == nil || subjectProgram == nil || *subjectProgram != *classProgram {
			return ErrNotAssociated
		}
		if _, err = lockProgram(ctx, tx, *classProgram); err != nil {
			return err
		}

		if err = setMembership(ctx, tx, "subjects", subjectID, nil); err != nil {
			return err
		}
		remaining, err := countMembers(ctx, tx, "subjects", *classProgram)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err = setMembership(ctx, tx, "classes", classID, nil); err != nil {
				return err
			}
		}
		deleted, err = deleteProgramIfEmpty(ctx, tx, *classProgram)
		return err
	})
	return deleted, err
}

// AssignClass moves a class into a program.
func (r *ProgramRepository) AssignClass(ctx context.Context, programID, classID string) error {
	return r.assign(ctx, "classes", programID, classID)
}

// AssignSubject moves a subject into a program.
func (r *ProgramRepository) AssignSubject(ctx context.Context, programID, subjectID string) error {
	return r.assign(ctx, "subjects", programID, subjectID)
}

// RemoveClass detaches a class from a program it belongs to.
func (r *ProgramRepository) RemoveClass(ctx context.Context, programID, classID string) error {
	return r.remove(ctx, "classes", programID, classID)
}

// RemoveSubject detaches a subject from a program it belongs to.
func (r *ProgramRepository) RemoveSubject(ctx context.Context, programID, subjectID string) error {
	return r.remove(ctx, "subjects", programID, subjectID)
}

// ReleaseClass detaches a class from whatever program it follows and deletes
// the program once empty. It reports whether a program was deleted.
func (r *ProgramRepository) ReleaseClass(ctx context.Context, classID string) (bool, error) {
	return r.release(ctx, "classes", classID)
}

func (r *ProgramRepository) assign(ctx context.Context, table, programID, memberID string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := lockMembership(ctx, tx, table, memberID); err != nil {
			return err
		}
		if _, err := lockProgram(ctx, tx, programID); err != nil {
			return err
		}
		return setMembership(ctx, tx, table, memberID, &programID)
	})
}

func (r *ProgramRepository) remove(ctx context.Context, table, programID, memberID string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := lockMembership(ctx, tx, table, memberID)
		if err != nil {
			return err
		}
		if current == nil || *current != programID {
			return ErrNotAssociated
		}
		if _, err := lockProgram(ctx, tx, programID); err != nil {
			return err
		}
		return setMembership(ctx, tx, table, memberID, nil)
	})
}

func (r *ProgramRepository) release(ctx context.Context, table, memberID string) (deleted bool, err error) {
	err = withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := lockMembership(ctx, tx, table, memberID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotAssociated
		}
		if _, err = lockProgram(ctx, tx, *current); err != nil {
			return err
		}
		if err = setMembership(ctx, tx, table, memberID, nil); err != nil {
			return err
		}
		deleted, err = deleteProgramIfEmpty(ctx, tx, *current)
		return err
	})
	return deleted, err
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertProgram(ctx context.Context, exec sqlx.ExtContext, p *models.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	const query = `INSERT INTO programs (id, description, created_at, updated_at) VALUES (:id, :description, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, p); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

func lockProgram(ctx context.Context, tx *sqlx.Tx, id string) (*models.Program, error) {
	var p models.Program
	const query = `SELECT id, description, created_at, updated_at FROM programs WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock program: %w", err)
	}
	return &p, nil
}

// lockPrograms locks the distinct non-nil program ids in ascending order.
func lockPrograms(ctx context.Context, tx *sqlx.Tx, ids ...*string) (map[string]*models.Program, error) {
	locked := make(map[string]*models.Program, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, seen := locked[*id]; seen {
			continue
		}
		locked[*id] = nil
		ordered = append(ordered, *id)
	}
	sort.Strings(ordered)
	for _, id := range ordered {
		p, err := lockProgram(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = p
	}
	return locked, nil
}

// lockMembership locks a class or subject row and returns its program id.
func lockMembership(ctx context.Context, tx *sqlx.Tx, table, id string) (*string, error) {
	var programID *string
	query := fmt.Sprintf("SELECT program_id FROM %s WHERE id = $1 FOR UPDATE", table)
	if err := tx.GetContext(ctx, &programID, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock %s row: %w", table, err)
	}
	return programID, nil
}

func setMembership(ctx context.Context, tx *sqlx.Tx, table, id string, programID *string) error {
	query := fmt.Sprintf("UPDATE %s SET program_id = $2, updated_at = $3 WHERE id = $1", table)
	if _, err := tx.ExecContext(ctx, query, id, programID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update %s program: %w", table, err)
	}
	return nil
}

func countMembers(ctx context.Context, tx *sqlx.Tx, table, programID string) (int, error) {
	var total int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE program_id = $1", table)
	if err := tx.GetContext(ctx, &total, query, programID); err != nil {
		return 0, fmt.Errorf("count %s in program: %w", table, err)
	}
	return total, nil
}

func deleteProgramIfEmpty(ctx context.Context, tx *sqlx.Tx, programID string) (bool, error) {
	const query = `DELETE FROM programs p WHERE p.id = $1
AND NOT EXISTS (SELECT 1 FROM classes WHERE program_id = p.id)
AND NOT EXISTS (SELECT 1 FROM subjects WHERE program_id = p.id)`
	res, err := tx.ExecContext(ctx, query, programID)
	if err != nil {
		return false, fmt.Errorf("delete empty program: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// deleteMember removes a class or subject row and, in the same transaction,
// its program when the row was the last member.
func deleteMember(ctx context.Context, db *sqlx.DB, table, id string) error {
	return withTx(ctx, db, func(tx *sqlx.Tx) error {
		programID, err := lockMembership(ctx, tx, table, id)
		if err != nil {
			return err
		}
		if programID != nil {
			if _, err = lockProgram(ctx, tx, *programID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
		if err != nil {
			return fmt.Errorf("delete %s row: %w", table, err)
		}
		if err = requireAffected(res); err != nil {
			return err
		}
		if programID != nil {
			_, err = deleteProgramIfEmpty(ctx, tx, *programID)
		}
		return err
	})
}
