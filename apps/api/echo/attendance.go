package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/attendance"
)

type attendanceApi struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, deps ServerDeps) {
	api := attendanceApi{svc: deps.AttendanceSvc, validate: deps.Validate}

	ag := g.Group("/attendance")
	ag.POST("/mark", api.mark)
	ag.GET("/students/:id", api.studentReport)
	ag.GET("/sections/:id", api.sectionDay)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.Batch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Batch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	records, err := api.svc.Mark(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) studentReport(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	from, err := dateQuery(ctx, "from")
	if err != nil {
		return err
	}
	to, err := dateQuery(ctx, "to")
	if err != nil {
		return err
	}
	rep, err := api.svc.StudentReport(ctx.Request().Context(), callerOf(ctx), id, from, to)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *attendanceApi) sectionDay(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	day, err := dateQuery(ctx, "date")
	if err != nil {
		return err
	}
	sheet, err := api.svc.SectionDay(ctx.Request().Context(), callerOf(ctx), id, day)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}
