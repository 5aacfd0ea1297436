package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/academic"
)

type academicApi struct {
	svc      *academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, deps ServerDeps) {
	api := academicApi{svc: deps.AcademicSvc, validate: deps.Validate}

	g.GET("/periods", api.listPeriods)
	g.POST("/periods", api.createPeriod)
	g.POST("/periods/:id/activate", api.activatePeriod)

	g.GET("/classes", api.listClasses)
	g.POST("/classes", api.createClass)

	g.GET("/sections", api.listSections)
	g.POST("/sections", api.createSection)
	g.GET("/sections/:id", api.retrieveSection)
	g.PUT("/sections/:id/class-teacher", api.setClassTeacher)

	g.GET("/subjects", api.listSubjects)
	g.POST("/subjects", api.createSubject)

	g.GET("/assignments", api.listAssignments)
	g.POST("/assignments", api.assignTeacher)
}

func (api *academicApi) createPeriod(ctx echo.Context) error {
	var data academic.NewPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	period, err := api.svc.CreatePeriod(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, period)
}

func (api *academicApi) activatePeriod(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	period, err := api.svc.ActivatePeriod(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, period)
}

func (api *academicApi) listPeriods(ctx echo.Context) error {
	periods, err := api.svc.ListPeriods(ctx.Request().Context(), callerOf(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *academicApi) createClass(ctx echo.Context) error {
	var data academic.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	class, err := api.svc.CreateClass(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *academicApi) listClasses(ctx echo.Context) error {
	periodID, err := intQuery(ctx, "period_id")
	if err != nil {
		return err
	}
	classes, err := api.svc.ListClasses(ctx.Request().Context(), callerOf(ctx), periodID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *academicApi) createSection(ctx echo.Context) error {
	var data academic.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sec, err := api.svc.CreateSection(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *academicApi) retrieveSection(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	sec, err := api.svc.GetSection(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *academicApi) listSections(ctx echo.Context) error {
	classID, err := intQuery(ctx, "class_id")
	if err != nil {
		return err
	}
	sections, err := api.svc.ListSections(ctx.Request().Context(), callerOf(ctx), classID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sections)
}

type ClassTeacherRequest struct {
	TeacherID int64 `json:"teacher_id"` // 0 unsets the class teacher
}

func (api *academicApi) setClassTeacher(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data ClassTeacherRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassTeacherRequest")
	}
	sec, err := api.svc.SetClassTeacher(ctx.Request().Context(), callerOf(ctx), id, data.TeacherID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *academicApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	subj, err := api.svc.CreateSubject(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *academicApi) listSubjects(ctx echo.Context) error {
	classID, err := intQuery(ctx, "class_id")
	if err != nil {
		return err
	}
	subjects, err := api.svc.ListSubjects(ctx.Request().Context(), callerOf(ctx), classID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicApi) assignTeacher(ctx echo.Context) error {
	var data academic.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	asg, err := api.svc.AssignTeacher(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *academicApi) listAssignments(ctx echo.Context) error {
	var filter academic.AssignmentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to AssignmentFilter")
	}
	assignments, err := api.svc.ListAssignments(ctx.Request().Context(), callerOf(ctx), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, assignments)
}
