package extension

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xraph/forge"
	"github.com/xraph/go-utils/errs"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/auth"
	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
)

// RegisterRoutes mounts the rent request routes on r.
func (e *Extension) RegisterRoutes(r forge.Router) error {
	routes := []struct {
		method  func(string, any, ...forge.RouteOption) error
		path    string
		handler forge.Handler
		name    string
	}{
		{r.GET, "/rents", e.handleListRents, "rentledger.rents.list"},
		{r.GET, "/rents/:id/payments", e.handleListPayments, "rentledger.payments.list"},
		{r.POST, "/rents/:id/orders", e.handleCreateOrder, "rentledger.orders.create"},
		{r.POST, "/rents/:id/payments", e.handleSubmitClaim, "rentledger.payments.submit"},
		{r.GET, "/rents/:id/invoice", e.handleInvoice, "rentledger.invoice.render"},
	}
	for _, rt := range routes {
		if err := rt.method(rt.path, rt.handler, forge.WithName(rt.name)); err != nil {
			return fmt.Errorf("rentledger: register %s: %w", rt.path, err)
		}
	}
	return nil
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type claimResponse struct {
	Status  string           `json:"status"`
	Payment *payment.Payment `json:"payment"`
}

func (e *Extension) handleListRents(ctx forge.Context) error {
	caller, err := e.caller(ctx)
	if err != nil {
		return err
	}

	opts := rent.ListOpts{
		Status: rent.Status(ctx.Query("status")),
		Limit:  queryInt(ctx, "limit"),
		Offset: queryInt(ctx, "offset"),
	}
	list, err := e.engine.ListRents(ctx.Context(), caller, opts)
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(http.StatusOK, list)
}

func (e *Extension) handleListPayments(ctx forge.Context) error {
	caller, rentID, err := e.callerAndRent(ctx)
	if err != nil {
		return err
	}

	list, err := e.engine.ListPayments(ctx.Context(), caller, rentID)
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(http.StatusOK, list)
}

func (e *Extension) handleCreateOrder(ctx forge.Context) error {
	caller, rentID, err := e.callerAndRent(ctx)
	if err != nil {
		return err
	}

	order, err := e.engine.CreatePaymentOrder(ctx.Context(), caller, rentID)
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(http.StatusOK, orderResponse{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
	})
}

func (e *Extension) handleSubmitClaim(ctx forge.Context) error {
	caller, rentID, err := e.callerAndRent(ctx)
	if err != nil {
		return err
	}

	var claim gateway.Claim
	if err := ctx.BindJSON(&claim); err != nil {
		return errs.BadRequest("malformed payment claim")
	}
	if claim.OrderID == "" || claim.PaymentID == "" || claim.Signature == "" {
		return errs.BadRequest("order_id, payment_id and signature are required")
	}

	p, err := e.engine.SubmitPaymentClaim(ctx.Context(), caller, rentID, claim)
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(http.StatusOK, claimResponse{Status: "success", Payment: p})
}

func (e *Extension) handleInvoice(ctx forge.Context) error {
	caller, rentID, err := e.callerAndRent(ctx)
	if err != nil {
		return err
	}

	pdf, err := e.engine.RenderInvoice(ctx.Context(), caller, rentID)
	if err != nil {
		return toHTTPError(err)
	}
	ctx.SetHeader("Content-Type", "application/pdf")
	ctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoice_"+rentID.String()+".pdf"))
	return ctx.Bytes(http.StatusOK, pdf)
}

// caller authenticates the bearer token on the request.
func (e *Extension) caller(ctx forge.Context) (auth.Caller, error) {
	c, err := e.verifier.VerifyHeader(ctx.Header("Authorization"))
	if err != nil {
		return auth.Caller{}, errs.Unauthorized("missing or invalid bearer token")
	}
	return c, nil
}

func (e *Extension) callerAndRent(ctx forge.Context) (auth.Caller, id.RentID, error) {
	c, err := e.caller(ctx)
	if err != nil {
		return auth.Caller{}, id.Nil, err
	}
	rentID, err := id.ParseRentID(ctx.Param("id"))
	if err != nil {
		return auth.Caller{}, id.Nil, errs.NotFound("rent not found")
	}
	return c, rentID, nil
}

// toHTTPError maps engine error kinds onto HTTP statuses.
func toHTTPError(err error) error {
	switch rentledger.KindOf(err) {
	case rentledger.KindNotFound:
		return errs.NotFound(err.Error())
	case rentledger.KindForbidden:
		return errs.Forbidden(err.Error())
	case rentledger.KindUnauthorized:
		return errs.Unauthorized(err.Error())
	case rentledger.KindGatewayUnavailable:
		return errs.NewHTTPError(http.StatusBadGateway, err.Error())
	case rentledger.KindVerificationFailed:
		return errs.BadRequest(err.Error())
	case rentledger.KindAlreadySettled:
		return errs.NewHTTPError(http.StatusConflict, err.Error())
	case rentledger.KindValidation:
		return errs.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return errs.InternalError(err)
}

func queryInt(ctx forge.Context, name string) int {
	n, err := strconv.Atoi(ctx.Query(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
