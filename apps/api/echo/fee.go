package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/fee"
)

type feeApi struct {
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, deps ServerDeps) {
	api := feeApi{svc: deps.FeeSvc, validate: deps.Validate}

	fg := g.Group("/fees")
	fg.GET("/heads", api.listHeads)
	fg.POST("/heads", api.createHead)
	fg.GET("", api.list)
	fg.POST("", api.assign)
	fg.POST("/:id/pay", api.pay)
	fg.GET("/:id/payments", api.payments)
	fg.GET("/students/:id", api.studentFees)
}

func (api *feeApi) createHead(ctx echo.Context) error {
	var data fee.NewHead
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHead")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	head, err := api.svc.CreateHead(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, head)
}

func (api *feeApi) listHeads(ctx echo.Context) error {
	heads, err := api.svc.ListHeads(ctx.Request().Context(), callerOf(ctx))
	if err != nil {
		return err
	}
	if heads == nil {
		heads = []fee.Head{}
	}
	return ctx.JSON(http.StatusOK, heads)
}

func (api *feeApi) assign(ctx echo.Context) error {
	var data fee.AssignFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	fees, err := api.svc.AssignFee(ctx.Request().Context(), callerOf(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fees)
}

func (api *feeApi) list(ctx echo.Context) error {
	var filter fee.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}
	fees, err := api.svc.ListFees(ctx.Request().Context(), callerOf(ctx), filter, bindPage(ctx))
	if err != nil {
		return err
	}
	if fees == nil {
		fees = []fee.StudentFee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

type PaymentResponse struct {
	Payment fee.Payment    `json:"payment"`
	Fee     fee.StudentFee `json:"fee"`
}

func (api *feeApi) pay(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	pmt, sf, err := api.svc.RecordPayment(ctx.Request().Context(), callerOf(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Payment: pmt, Fee: sf})
}

func (api *feeApi) payments(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	pmts, err := api.svc.Payments(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	if pmts == nil {
		pmts = []fee.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

func (api *feeApi) studentFees(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	fees, err := api.svc.StudentFees(ctx.Request().Context(), callerOf(ctx), id)
	if err != nil {
		return err
	}
	if fees == nil {
		fees = []fee.StudentFee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}
