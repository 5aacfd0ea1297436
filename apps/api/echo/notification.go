package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/campus/core/dashboard"
	"github.com/trezcool/campus/core/notification"
)

type notificationApi struct {
	svc       *notification.Service
	dashboard *dashboard.Service
}

func registerNotificationAPI(g *echo.Group, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc, dashboard: deps.DashboardSvc}

	ng := g.Group("/notifications")
	ng.GET("", api.list)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/mark-all-read", api.markAllRead)
	ng.PATCH("/:id/read", api.markRead)

	g.GET("/dashboard", api.dashboardOf)
}

func (api *notificationApi) list(ctx echo.Context) error {
	unreadOnly, _ := strconv.ParseBool(ctx.QueryParam("unread"))
	limit, err := intQuery(ctx, "limit")
	if err != nil {
		return err
	}
	notifs, err := api.svc.List(ctx.Request().Context(), callerOf(ctx), unreadOnly, int(limit))
	if err != nil {
		return err
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	notif, err := api.svc.MarkRead(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notif)
}

type CountResponse struct {
	Count int `json:"count"`
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), callerOf(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	n, err := api.svc.UnreadCount(ctx.Request().Context(), callerOf(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) dashboardOf(ctx echo.Context) error {
	dash, err := api.dashboard.For(ctx.Request().Context(), callerOf(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dash)
}
