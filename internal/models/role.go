package models

import "sort"

// UserRole is the closed set of account kinds.
type UserRole string

const (
	RoleAdministrator UserRole = "ADMINISTRATOR"
	RoleTeacher       UserRole = "TEACHER"
	RoleStudent       UserRole = "STUDENT"
	RoleParent        UserRole = "PARENT"
)

// Valid reports whether the role belongs to the supported set.
func (r UserRole) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Permission names a single capability in resource:action form.
type Permission string

const (
	PermUserRead         Permission = "user:read"
	PermUserWrite        Permission = "user:write"
	PermUserDelete       Permission = "user:delete"
	PermClassRead        Permission = "class:read"
	PermClassWrite       Permission = "class:write"
	PermClassDelete      Permission = "class:delete"
	PermCourseRead       Permission = "course:read"
	PermCourseWrite      Permission = "course:write"
	PermCourseDelete     Permission = "course:delete"
	PermGradeRead        Permission = "grade:read"
	PermGradeWrite       Permission = "grade:write"
	PermGradeDelete      Permission = "grade:delete"
	PermAttendanceRead   Permission = "attendance:read"
	PermAttendanceWrite  Permission = "attendance:write"
	PermAttendanceDelete Permission = "attendance:delete"
	PermScheduleRead     Permission = "schedule:read"
	PermScheduleWrite    Permission = "schedule:write"
	PermScheduleDelete   Permission = "schedule:delete"
	PermReportRead       Permission = "report:read"
	PermReportWrite      Permission = "report:write"
	PermSystemConfigure  Permission = "system:configure"
	PermStudentRead      Permission = "student:read"
	PermAnnouncementRead Permission = "announcement:read"
	PermAnnouncementPost Permission = "announcement:write"
	PermAssignmentRead   Permission = "assignment:read"
	PermAssignmentSubmit Permission = "assignment:submit"
	PermTeacherContact   Permission = "teacher:contact"
)

var rolePermissions = map[UserRole]map[Permission]struct{}{
	RoleAdministrator: permissionSet(
		PermUserRead, PermUserWrite, PermUserDelete,
		PermClassRead, PermClassWrite, PermClassDelete,
		PermCourseRead, PermCourseWrite, PermCourseDelete,
		PermGradeRead, PermGradeWrite, PermGradeDelete,
		PermAttendanceRead, PermAttendanceWrite, PermAttendanceDelete,
		PermScheduleRead, PermScheduleWrite, PermScheduleDelete,
		PermReportRead, PermReportWrite,
		PermSystemConfigure,
	),
	RoleTeacher: permissionSet(
		PermClassRead,
		PermCourseRead, PermCourseWrite,
		PermGradeRead, PermGradeWrite,
		PermAttendanceRead, PermAttendanceWrite,
		PermScheduleRead,
		PermStudentRead,
		PermReportRead, PermReportWrite,
		PermAnnouncementPost,
	),
	RoleStudent: permissionSet(
		PermCourseRead,
		PermGradeRead,
		PermAttendanceRead,
		PermScheduleRead,
		PermAssignmentRead, PermAssignmentSubmit,
		PermAnnouncementRead,
	),
	RoleParent: permissionSet(
		PermStudentRead,
		PermGradeRead,
		PermAttendanceRead,
		PermScheduleRead,
		PermAnnouncementRead,
		PermTeacherContact,
	),
}

func permissionSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Can reports whether the role grants the permission.
func (r UserRole) Can(p Permission) bool {
	_, ok := rolePermissions[r][p]
	return ok
}

// Permissions lists the role's permissions in lexical order.
func (r UserRole) Permissions() []Permission {
	set := rolePermissions[r]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Roles returns every supported role.
func Roles() []UserRole {
	return []UserRole{RoleAdministrator, RoleTeacher, RoleStudent, RoleParent}
}
