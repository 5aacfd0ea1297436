package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/homework"
)

const (
	attachmentField = "attachment"
	submissionField = "file"
)

type homeworkApi struct {
	svc      *homework.Service
	blobs    core.BlobStore
	validate *validator.Validate
}

func registerHomeworkAPI(g *echo.Group, deps ServerDeps) {
	api := homeworkApi{svc: deps.HomeworkSvc, blobs: deps.Blobs, validate: deps.Validate}

	hg := g.Group("/homework")
	hg.GET("", api.list)
	hg.POST("", api.create)
	hg.GET("/:id", api.retrieve)
	hg.POST("/:id/submit", api.submit)
	hg.GET("/:id/submissions", api.submissions)

	g.POST("/submissions/:id/grade", api.grade)
}

// create accepts JSON, or a multipart form with an optional attachment.
func (api *homeworkApi) create(ctx echo.Context) error {
	var data homework.NewHomework
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHomework")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	url, err := saveUpload(ctx, api.blobs, attachmentField)
	if err != nil {
		return err
	}
	data.AttachmentURL = url

	hw, err := api.svc.Create(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, hw)
}

func (api *homeworkApi) list(ctx echo.Context) error {
	var filter homework.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}
	hws, err := api.svc.List(ctx.Request().Context(), callerOf(ctx), filter)
	if err != nil {
		return err
	}
	if hws == nil {
		hws = []homework.Homework{}
	}
	return ctx.JSON(http.StatusOK, hws)
}

func (api *homeworkApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	hw, err := api.svc.Get(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, hw)
}

func (api *homeworkApi) submit(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data homework.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	url, err := saveUpload(ctx, api.blobs, submissionField)
	if err != nil {
		return err
	}
	data.FileURL = url
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), callerOf(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *homeworkApi) submissions(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.Submissions(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []homework.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *homeworkApi) grade(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data homework.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sub, err := api.svc.Grade(ctx.Request().Context(), callerOf(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}
