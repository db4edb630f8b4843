package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/handler"
	"github.com/noah-isme/school-api/internal/middleware"
	"github.com/noah-isme/school-api/internal/models"
)

type handlers struct {
	auth        *handler.AuthHandler
	users       *handler.UserHandler
	departments *handler.DepartmentHandler
	levels      *handler.LevelHandler
	classes     *handler.ClassHandler
	programs    *handler.ProgramHandler
	subjects    *handler.SubjectHandler
	sessions    *handler.SessionHandler
	exports     *handler.ExportHandler
	activities  *handler.ActivityHandler
	grades      *handler.GradeHandler
	absences    *handler.AbsenceHandler
}

func registerRoutes(api *gin.RouterGroup, h handlers, tokens middleware.TokenValidator, audit middleware.AuditWriter, logr *zap.Logger) {
	can := middleware.RequirePermission

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)
	auth.POST("/password-reset/request", h.auth.RequestPasswordReset)
	auth.POST("/password-reset/confirm", h.auth.ConfirmPasswordReset)

	// Signed tokens authorise downloads on their own.
	api.GET("/exports/:token", h.exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	securedAuth := secured.Group("/auth")
	securedAuth.POST("/logout", h.auth.Logout)
	securedAuth.POST("/register", can(models.PermUserWrite), h.auth.Register)
	securedAuth.POST("/change-password", h.auth.ChangePassword)
	securedAuth.GET("/check", h.auth.Check)

	users := secured.Group("/admin/users")
	users.GET("", can(models.PermUserRead), h.users.List)
	users.GET("/search", can(models.PermUserRead), h.users.Search)
	users.GET("/statistics", can(models.PermUserRead), h.users.Statistics)
	users.GET("/by-role/:role", can(models.PermUserRead), h.users.ByRole)
	users.GET("/teachers/:id", can(models.PermUserRead), h.users.Teacher)
	users.GET("/:id", can(models.PermUserRead), h.users.Get)
	users.PUT("/:id/status", can(models.PermUserWrite), h.users.UpdateStatus)
	users.POST("/:id/reset-password", can(models.PermUserWrite), h.users.ResetPassword)
	users.DELETE("/:id", can(models.PermUserDelete), h.users.Delete)

	departments := secured.Group("/departments")
	departments.GET("", can(models.PermClassRead), h.departments.List)
	departments.GET("/:id", can(models.PermClassRead), h.departments.Get)
	departments.POST("", can(models.PermClassWrite), h.departments.Create)
	departments.PUT("/:id", can(models.PermClassWrite), h.departments.Update)
	departments.DELETE("/:id", can(models.PermClassDelete), h.departments.Delete)

	levels := secured.Group("/levels")
	levels.GET("", can(models.PermClassRead), h.levels.List)
	levels.GET("/:id", can(models.PermClassRead), h.levels.Get)
	levels.GET("/:id/path", can(models.PermClassRead), h.levels.Path)
	levels.GET("/:id/classes/count", can(models.PermClassRead), h.levels.ClassCount)
	levels.POST("", can(models.PermClassWrite), h.levels.Create)
	levels.PUT("/:id", can(models.PermClassWrite), h.levels.Update)
	levels.DELETE("/:id", can(models.PermClassDelete), h.levels.Delete)

	classes := secured.Group("/classes")
	classes.GET("", can(models.PermClassRead), h.classes.List)
	classes.GET("/:id", can(models.PermClassRead), h.classes.Get)
	classes.POST("", can(models.PermClassWrite), h.classes.Create)
	classes.PUT("/:id", can(models.PermClassWrite), h.classes.Update)
	classes.DELETE("/:id", can(models.PermClassDelete), h.classes.Delete)
	classes.POST("/:id/program/:programId", can(models.PermClassWrite), h.classes.AssignProgram)
	classes.DELETE("/:id/program", can(models.PermClassWrite), h.classes.RemoveProgram)

	programs := secured.Group("/programs")
	programs.GET("", can(models.PermCourseRead), h.programs.List)
	programs.GET("/shared", can(models.PermCourseRead), h.programs.Shared)
	programs.GET("/by-class/:classId", can(models.PermCourseRead), h.programs.ByClass)
	programs.GET("/by-subject/:subjectId", can(models.PermCourseRead), h.programs.BySubject)
	programs.POST("/class-subjects", can(models.PermCourseWrite), h.programs.AssignSubjectToClass)
	programs.DELETE("/class-subjects/:classId/:subjectId", can(models.PermCourseWrite), h.programs.RemoveSubjectFromClass)
	programs.GET("/:id", can(models.PermCourseRead), h.programs.Get)
	programs.GET("/:id/exists", can(models.PermCourseRead), h.programs.Exists)
	programs.GET("/:id/statistics", can(models.PermCourseRead), h.programs.Statistics)
	programs.POST("", can(models.PermCourseWrite), h.programs.Create)
	programs.PUT("/:id", can(models.PermCourseWrite), h.programs.Update)
	programs.DELETE("/:id", can(models.PermCourseDelete), h.programs.Delete)
	programs.POST("/:id/classes/:classId", can(models.PermCourseWrite), h.programs.AssignClass)
	programs.DELETE("/:id/classes/:classId", can(models.PermCourseWrite), h.programs.RemoveClass)
	programs.POST("/:id/subjects/:subjectId", can(models.PermCourseWrite), h.programs.AssignSubject)
	programs.DELETE("/:id/subjects/:subjectId", can(models.PermCourseWrite), h.programs.RemoveSubject)

	subjects := secured.Group("/subjects")
	subjects.GET("", can(models.PermCourseRead), h.subjects.List)
	subjects.GET("/search", can(models.PermCourseRead), h.subjects.Search)
	subjects.GET("/:id", can(models.PermCourseRead), h.subjects.Get)
	subjects.POST("", can(models.PermCourseWrite), h.subjects.Create)
	subjects.PUT("/:id", can(models.PermCourseWrite), h.subjects.Update)
	subjects.DELETE("/:id", can(models.PermCourseDelete), h.subjects.Delete)

	sessions := secured.Group("/sessions")
	sessions.GET("", can(models.PermScheduleRead), h.sessions.List)
	sessions.GET("/overlapping", can(models.PermScheduleRead), h.sessions.Overlapping)
	sessions.GET("/availability", can(models.PermScheduleRead), h.sessions.Availability)
	sessions.GET("/range", can(models.PermScheduleRead), h.sessions.Range)
	sessions.GET("/statistics", can(models.PermScheduleRead), h.sessions.Statistics)
	sessions.GET("/export", can(models.PermReportRead), h.sessions.Export)
	sessions.GET("/teachers/:teacherId/statistics", can(models.PermScheduleRead), h.sessions.TeacherStatistics)
	sessions.GET("/teachers/:teacherId/hours", can(models.PermScheduleRead), h.sessions.TeacherHours)
	sessions.DELETE("/teachers/:teacherId", can(models.PermScheduleDelete), h.sessions.DeleteByTeacher)
	sessions.DELETE("/subjects/:subjectId", can(models.PermScheduleDelete), h.sessions.DeleteBySubject)
	sessions.GET("/:id", can(models.PermScheduleRead), h.sessions.Get)
	sessions.POST("", can(models.PermScheduleWrite), middleware.Audit(audit, logr, models.AuditActionSessionCreate, "session"), h.sessions.Create)
	sessions.PUT("/:id", can(models.PermScheduleWrite), middleware.Audit(audit, logr, models.AuditActionSessionUpdate, "session"), h.sessions.Update)
	sessions.DELETE("/:id", can(models.PermScheduleDelete), middleware.Audit(audit, logr, models.AuditActionSessionDelete, "session"), h.sessions.Delete)

	activities := secured.Group("/activities")
	activities.GET("", can(models.PermCourseRead), h.activities.List)
	activities.GET("/:id", can(models.PermCourseRead), h.activities.Get)
	activities.POST("", can(models.PermCourseWrite), h.activities.Create)
	activities.PUT("/:id", can(models.PermCourseWrite), h.activities.Update)
	activities.DELETE("/:id", can(models.PermCourseDelete), h.activities.Delete)

	grades := secured.Group("/grades")
	grades.GET("", can(models.PermGradeRead), h.grades.List)
	grades.GET("/students/:studentId/average", can(models.PermGradeRead), h.grades.StudentAverage)
	grades.GET("/activities/:activityId/average", can(models.PermGradeRead), h.grades.ActivityAverage)
	grades.DELETE("/students/:studentId", can(models.PermGradeDelete), h.grades.DeleteByStudent)
	grades.DELETE("/activities/:activityId", can(models.PermGradeDelete), h.grades.DeleteByActivity)
	grades.GET("/:id", can(models.PermGradeRead), h.grades.Get)
	grades.POST("", can(models.PermGradeWrite), h.grades.Create)
	grades.PUT("/:id", can(models.PermGradeWrite), h.grades.Update)
	grades.DELETE("/:id", can(models.PermGradeDelete), h.grades.Delete)

	absences := secured.Group("/absences")
	absences.GET("", can(models.PermAttendanceRead), h.absences.List)
	absences.GET("/students/:studentId/statistics", can(models.PermAttendanceRead), h.absences.StudentStatistics)
	absences.GET("/classes/:classId/statistics", can(models.PermAttendanceRead), h.absences.ClassStatistics)
	absences.GET("/:id", can(models.PermAttendanceRead), h.absences.Get)
	absences.POST("", can(models.PermAttendanceWrite), h.absences.Create)
	absences.PUT("/:id", can(models.PermAttendanceWrite), h.absences.Update)
	absences.DELETE("/:id", can(models.PermAttendanceDelete), h.absences.Delete)
	absences.POST("/:id/justify", can(models.PermAttendanceWrite), h.absences.Justify)
	absences.POST("/:id/unjustify", can(models.PermAttendanceWrite), h.absences.Unjustify)
	absences.PUT("/:id/status", can(models.PermAttendanceWrite), h.absences.ChangeStatus)
}
