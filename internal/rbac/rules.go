package rbac

const (
	PermCourseView        = "course:view"
	PermCourseCreate      = "course:create"
	PermCourseEditOwn     = "course:edit_own"
	PermCourseDeleteOwn   = "course:delete_own"
	PermCourseEditAny     = "course:edit_any"
	PermEnrollmentCreate  = "enrollment:create"
	PermEnrollmentViewOwn = "enrollment:view_own"
	PermSubmissionCreate  = "submission:create"
	PermSubmissionViewOwn = "submission:view_own"
	PermSubmissionViewAll = "submission:view_all"
	PermAnalyticsView     = "analytics:view"
	PermReportExport      = "report:export"
	PermUserChangePass    = "user:change_password"
	PermUserList          = "users:list"
	PermUserCreate        = "users:create"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"learner": {
		PermCourseView,
		PermEnrollmentCreate,
		PermEnrollmentViewOwn,
		PermSubmissionCreate,
		PermSubmissionViewOwn,
		PermUserChangePass,
	},
	"instructor": {
		PermCourseView,
		PermCourseCreate,
		PermCourseEditOwn,
		PermCourseDeleteOwn,
		PermSubmissionViewAll,
		PermAnalyticsView,
		PermReportExport,
		PermUserChangePass,
		PermUserList,
	},
	"admin": {
		"*", // everything
	},
}
