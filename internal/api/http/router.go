package http

import (
	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-courses/internal/auth/middleware"
	"github.com/mind-engage/mindengage-courses/internal/rbac"
)

// Mount registers every API route on r.
func Mount(r chi.Router, d *Deps) {
	if !d.DisableLocalLogin {
		r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Users, d.Log))
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.JWTMiddleware(d.Auth))
		r.Use(authmw.AttachUser(d.Users, d.Log))
		can := d.RBAC.Require

		r.Get("/me", MeHandler(d))
		r.Post("/me/password", ChangePasswordHandler(d))
		r.With(can(rbac.PermEnrollmentViewOwn)).Get("/me/enrollments", MyEnrollmentsHandler(d))
		r.With(can(rbac.PermUserList)).Get("/users", ListUsersHandler(d))
		r.With(can(rbac.PermUserCreate)).Post("/users", CreateUserHandler(d))

		r.Route("/courses", func(r chi.Router) {
			r.With(can(rbac.PermCourseView)).Get("/", ListCoursesHandler(d))
			r.With(can(rbac.PermCourseCreate)).Post("/", CreateCourseHandler(d))
			r.With(can(rbac.PermCourseCreate)).Post("/import", ImportCourseHandler(d))

			r.Route("/{courseID}", func(r chi.Router) {
				r.With(can(rbac.PermCourseView)).Get("/", GetCourseHandler(d))
				r.Delete("/", DeleteCourseHandler(d))
				r.Post("/questions", AddQuestionHandler(d))
				r.Post("/instructors", AssignInstructorHandler(d))
				r.Put("/image", UploadCourseImageHandler(d))

				r.Get("/enrollment", EnrollmentStatusHandler(d))
				r.With(can(rbac.PermEnrollmentCreate)).Post("/enroll", EnrollHandler(d))
				r.With(can(rbac.PermEnrollmentCreate)).Post("/complete", CompleteEnrollmentHandler(d))
				r.With(can(rbac.PermEnrollmentCreate)).Post("/rating", RateCourseHandler(d))

				r.With(can(rbac.PermSubmissionCreate)).Post("/submissions", CreateSubmissionHandler(d))
				r.With(can(rbac.PermSubmissionViewAll)).Get("/submissions", ListCourseSubmissionsHandler(d))
				r.With(can(rbac.PermAnalyticsView)).Get("/analytics", CourseAnalyticsHandler(d))
				r.With(can(rbac.PermReportExport)).Get("/submissions.csv", SubmissionsCSVHandler(d))
				r.With(can(rbac.PermReportExport)).Get("/analytics.csv", AnalyticsCSVHandler(d))
			})
		})

		r.Patch("/questions/{questionID}", UpdateQuestionGradeHandler(d))
		r.Post("/questions/{questionID}/choices", AddChoiceHandler(d))
		r.Patch("/choices/{choiceID}", UpdateChoiceHandler(d))
		r.Delete("/choices/{choiceID}", DeleteChoiceHandler(d))

		r.Get("/submissions/{submissionID}/results", ResultsHandler(d))
		r.Get("/assets/*", GetAssetHandler(d))
	})
}
