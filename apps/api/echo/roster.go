package echoapi

import (
	"bytes"
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
)

type (
	rosterApi struct {
		svc *roster.Service
	}

	courseRef struct {
		CourseID string `json:"course_id" validate:"notblank"`
	}

	instructorRef struct {
		InstructorID string `json:"instructor_id" validate:"notblank"`
	}

	// ref is an id given by the client, used to suggest a close match on a lookup miss.
	ref struct {
		kind roster.Kind
		id   string
	}
)

var notFoundErrs = map[roster.Kind]error{
	roster.KindStudent:    roster.ErrStudentNotFound,
	roster.KindInstructor: roster.ErrInstructorNotFound,
	roster.KindCourse:     roster.ErrCourseNotFound,
}

func registerRosterAPI(g *echo.Group, svc *roster.Service) {
	api := rosterApi{svc: svc}

	sg := g.Group("/students")
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent)
	sg.DELETE("/:id", api.destroy(roster.KindStudent))
	sg.POST("/:id/courses", api.register)
	sg.DELETE("/:id/courses/:course_id", api.unregister)

	ig := g.Group("/instructors")
	ig.GET("", api.queryInstructors)
	ig.POST("", api.createInstructor)
	ig.GET("/:id", api.retrieveInstructor)
	ig.PUT("/:id", api.updateInstructor)
	ig.DELETE("/:id", api.destroy(roster.KindInstructor))

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse)
	cg.DELETE("/:id", api.destroy(roster.KindCourse))
	cg.PUT("/:id/instructor", api.assign)
	cg.DELETE("/:id/instructor", api.unassign)

	g.GET("/search", api.search)
	g.GET("/export", api.export)
	g.POST("/import", api.importDocument)
}

// lookupErr attaches the closest existing id to a lookup miss on one of refs.
func (api *rosterApi) lookupErr(ctx context.Context, err error, refs ...ref) error {
	for _, r := range refs {
		if !errors.Is(err, notFoundErrs[r.kind]) {
			continue
		}
		if id, ok := api.svc.ClosestID(ctx, r.kind, r.id); ok {
			return &notFoundError{err: err, suggestion: id}
		}
		break
	}
	return err
}

// Students

func (api *rosterApi) queryStudents(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	students, err := api.svc.Students(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if err = ord.SortStudents(students); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *rosterApi) createStudent(ctx echo.Context) error {
	var data roster.NewPerson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPerson")
	}
	st, err := api.svc.AddStudent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *rosterApi) retrieveStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	st, err := api.svc.Student(ctx.Request().Context(), id)
	if err != nil {
		return api.lookupErr(ctx.Request().Context(), err, ref{roster.KindStudent, id})
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *rosterApi) updateStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	var data roster.UpdatePerson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePerson")
	}
	st, err := api.svc.UpdateStudent(ctx.Request().Context(), id, data)
	if err != nil {
		return api.lookupErr(ctx.Request().Context(), err, ref{roster.KindStudent, id})
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *rosterApi) register(ctx echo.Context) error {
	id := ctx.Param("id")
	var data courseRef
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to courseRef")
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	if err := api.svc.RegisterStudentForCourse(rctx, id, data.CourseID); err != nil {
		return api.lookupErr(rctx, err, ref{roster.KindStudent, id}, ref{roster.KindCourse, data.CourseID})
	}
	st, err := api.svc.Student(rctx, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *rosterApi) unregister(ctx echo.Context) error {
	id, courseID := ctx.Param("id"), ctx.Param("course_id")
	rctx := ctx.Request().Context()
	if err := api.svc.UnregisterStudentFromCourse(rctx, id, courseID); err != nil {
		return api.lookupErr(rctx, err, ref{roster.KindStudent, id}, ref{roster.KindCourse, courseID})
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Instructors

func (api *rosterApi) queryInstructors(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	instructors, err := api.svc.Instructors(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying instructors")
	}
	if err = ord.SortInstructors(instructors); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, instructors)
}

func (api *rosterApi) createInstructor(ctx echo.Context) error {
	var data roster.NewPerson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPerson")
	}
	ins, err := api.svc.AddInstructor(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ins)
}

func (api *rosterApi) retrieveInstructor(ctx echo.Context) error {
	id := ctx.Param("id")
	ins, err := api.svc.Instructor(ctx.Request().Context(), id)
	if err != nil {
		return api.lookupErr(ctx.Request().Context(), err, ref{roster.KindInstructor, id})
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *rosterApi) updateInstructor(ctx echo.Context) error {
	id := ctx.Param("id")
	var data roster.UpdatePerson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePerson")
	}
	ins, err := api.svc.UpdateInstructor(ctx.Request().Context(), id, data)
	if err != nil {
		return api.lookupErr(ctx.Request().Context(), err, ref{roster.KindInstructor, id})
	}
	return ctx.JSON(http.StatusOK, ins)
}

// Courses

func (api *rosterApi) queryCourses(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	courses, err := api.svc.Courses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if err = ord.SortCourses(courses); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *rosterApi) createCourse(ctx echo.Context) error {
	var data roster.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	c, err := api.svc.AddCourse(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *rosterApi) retrieveCourse(ctx echo.Context) error {
	id := ctx.Param("id")
	c, err := api.svc.Course(ctx.Request().Context(), id)
	if err != nil {
		return api.lookupErr(ctx.Request().Context(), err, ref{roster.KindCourse, id})
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *rosterApi) updateCourse(ctx echo.Context) error {
	id := ctx.Param("id")
	var data roster.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	c, err := api.svc.UpdateCourse(ctx.Request().Context(), id, data)
	if err != nil {
		return api.lookupErr(ctx.Request().Context(), err, ref{roster.KindCourse, id})
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *rosterApi) assign(ctx echo.Context) error {
	id := ctx.Param("id")
	var data instructorRef
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to instructorRef")
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	if err := api.svc.AssignInstructorToCourse(rctx, data.InstructorID, id); err != nil {
		return api.lookupErr(rctx, err, ref{roster.KindInstructor, data.InstructorID}, ref{roster.KindCourse, id})
	}
	c, err := api.svc.Course(rctx, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *rosterApi) unassign(ctx echo.Context) error {
	id := ctx.Param("id")
	rctx := ctx.Request().Context()
	if err := api.svc.UnassignInstructor(rctx, id); err != nil {
		return api.lookupErr(rctx, err, ref{roster.KindCourse, id})
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Shared

func (api *rosterApi) destroy(kind roster.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id := ctx.Param("id")
		rctx := ctx.Request().Context()
		if err := api.svc.Delete(rctx, kind, id); err != nil {
			return api.lookupErr(rctx, err, ref{kind, id})
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

func (api *rosterApi) search(ctx echo.Context) error {
	res, err := api.svc.Search(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "searching roster")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *rosterApi) export(ctx echo.Context) error {
	format, err := roster.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = api.svc.Export(ctx.Request().Context(), format, &buf); err != nil {
		return errors.Wrap(err, "exporting roster")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+format.Filename()+`"`)
	return ctx.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// importDocument replaces the whole roster with the JSON (default) or YAML document in the body.
func (api *rosterApi) importDocument(ctx echo.Context) error {
	format := roster.FormatJSON
	if q := ctx.QueryParam("format"); q != "" {
		var err error
		if format, err = roster.ParseFormat(q); err != nil {
			return err
		}
	}

	rctx := ctx.Request().Context()
	if err := api.svc.Import(rctx, format, ctx.Request().Body); err != nil {
		return err
	}
	counts, err := api.svc.Counts(rctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, counts)
}
