package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/exam"
)

type examApi struct {
	svc      *exam.Service
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, deps ServerDeps) {
	api := examApi{svc: deps.ExamSvc, validate: deps.Validate}

	g.GET("/exams", api.list)
	g.POST("/exams", api.create)
	g.POST("/marks", api.enterMarks)
	g.GET("/marks/students/:id", api.studentMarks)
}

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ex, err := api.svc.CreateExam(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ex)
}

func (api *examApi) list(ctx echo.Context) error {
	var filter exam.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}
	exams, err := api.svc.ListExams(ctx.Request().Context(), callerOf(ctx), filter)
	if err != nil {
		return err
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) enterMarks(ctx echo.Context) error {
	var data exam.MarkBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	marks, err := api.svc.EnterMarks(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, marks)
}

func (api *examApi) studentMarks(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	examID, err := intQuery(ctx, "exam_id")
	if err != nil {
		return err
	}
	marks, err := api.svc.StudentMarks(ctx.Request().Context(), callerOf(ctx), id, examID)
	if err != nil {
		return err
	}
	if marks == nil {
		marks = []exam.Mark{}
	}
	return ctx.JSON(http.StatusOK, marks)
}
