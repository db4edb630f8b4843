package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePermissionTable(t *testing.T) {
	assert.True(t, RoleAdministrator.Can(PermScheduleWrite))
	assert.True(t, RoleAdministrator.Can(PermSystemConfigure))
	assert.False(t, RoleTeacher.Can(PermScheduleWrite))
	assert.True(t, RoleTeacher.Can(PermScheduleRead))
	assert.True(t, RoleStudent.Can(PermAssignmentSubmit))
	assert.False(t, RoleStudent.Can(PermGradeWrite))
	assert.True(t, RoleParent.Can(PermTeacherContact))
	assert.False(t, UserRole("JANITOR").Can(PermScheduleRead))
}

func TestRolePermissionsSorted(t *testing.T) {
	perms := RoleParent.Permissions()
	assert.Equal(t, []Permission{
		PermAnnouncementRead,
		PermAttendanceRead,
		PermGradeRead,
		PermScheduleRead,
		PermStudentRead,
		PermTeacherContact,
	}, perms)
	assert.Len(t, RoleAdministrator.Permissions(), 21)
}

func TestRoleValid(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, UserRole("ADMIN").Valid())
}

func TestStudentDetailsOnlyForStudents(t *testing.T) {
	classID := "class-1"
	student := &User{Role: RoleStudent, ClassID: &classID}
	details, ok := student.StudentDetails()
	assert.True(t, ok)
	assert.Equal(t, &classID, details.ClassID)

	teacher := &User{Role: RoleTeacher}
	_, ok = teacher.StudentDetails()
	assert.False(t, ok)
}
