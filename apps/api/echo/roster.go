package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/roster"
)

type rosterApi struct {
	svc      *roster.Service
	validate *validator.Validate
}

func registerRosterAPI(g *echo.Group, deps ServerDeps) {
	api := rosterApi{svc: deps.RosterSvc, validate: deps.Validate}

	g.GET("/students", api.listStudents)
	g.POST("/students", api.createStudent)
	g.GET("/students/:id", api.retrieveStudent)

	g.GET("/teachers", api.listTeachers)
	g.POST("/teachers", api.createTeacher)
	g.PATCH("/teachers/:id", api.updateTeacher)

	g.GET("/parents", api.listParents)
	g.POST("/parents", api.createParent)
	g.GET("/parents/:id/children", api.children)
	g.POST("/parents/:id/children", api.linkChild)
}

func (api *rosterApi) createStudent(ctx echo.Context) error {
	var data roster.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	student, err := api.svc.CreateStudent(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *rosterApi) retrieveStudent(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	student, err := api.svc.GetStudent(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *rosterApi) listStudents(ctx echo.Context) error {
	var filter roster.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to StudentFilter")
	}
	filter.Clean()
	students, err := api.svc.ListStudents(ctx.Request().Context(), callerOf(ctx), filter, bindPage(ctx))
	if err != nil {
		return err
	}
	if students == nil {
		students = []roster.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *rosterApi) createTeacher(ctx echo.Context) error {
	var data roster.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	teacher, err := api.svc.CreateTeacher(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, teacher)
}

func (api *rosterApi) updateTeacher(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data roster.UpdateTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	teacher, err := api.svc.UpdateTeacher(ctx.Request().Context(), callerOf(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *rosterApi) listTeachers(ctx echo.Context) error {
	teachers, err := api.svc.ListTeachers(ctx.Request().Context(), callerOf(ctx), bindPage(ctx))
	if err != nil {
		return err
	}
	if teachers == nil {
		teachers = []roster.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *rosterApi) createParent(ctx echo.Context) error {
	var data roster.NewParent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	parent, err := api.svc.CreateParent(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, parent)
}

func (api *rosterApi) listParents(ctx echo.Context) error {
	parents, err := api.svc.ListParents(ctx.Request().Context(), callerOf(ctx), bindPage(ctx))
	if err != nil {
		return err
	}
	if parents == nil {
		parents = []roster.Parent{}
	}
	return ctx.JSON(http.StatusOK, parents)
}

func (api *rosterApi) children(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.Children(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	if students == nil {
		students = []roster.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

type LinkChildRequest struct {
	StudentID int64 `json:"student_id" validate:"required"`
}

func (api *rosterApi) linkChild(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data LinkChildRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkChildRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	if err := api.svc.LinkParent(ctx.Request().Context(), callerOf(ctx), id, data.StudentID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Student linked."})
}
