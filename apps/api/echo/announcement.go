package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/announcement"
)

type announcementApi struct {
	svc      *announcement.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(g *echo.Group, deps ServerDeps) {
	api := announcementApi{svc: deps.AnnouncementSvc, validate: deps.Validate}

	g.GET("/announcements", api.list)
	g.POST("/announcements", api.create)
}

func (api *announcementApi) create(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ann, err := api.svc.Create(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ann)
}

// list returns the announcements targeting the caller, newest first.
func (api *announcementApi) list(ctx echo.Context) error {
	anns, err := api.svc.List(ctx.Request().Context(), callerOf(ctx), bindPage(ctx))
	if err != nil {
		return err
	}
	if anns == nil {
		anns = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, anns)
}
