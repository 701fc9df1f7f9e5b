package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /payments)
	InitiatePayment(w http.ResponseWriter, r *http.Request)
	// (GET /payments/{paymentId})
	GetPaymentById(w http.ResponseWriter, r *http.Request, paymentId string)
	// (POST /payments/{paymentId}/confirm)
	ConfirmReceipt(w http.ResponseWriter, r *http.Request, paymentId string)
	// (POST /payments/{paymentId}/disputes)
	FileDispute(w http.ResponseWriter, r *http.Request, paymentId string)
	// (GET /disputes/{disputeId})
	GetDisputeById(w http.ResponseWriter, r *http.Request, disputeId string)
	// (POST /disputes/{disputeId}/resolve)
	ResolveDispute(w http.ResponseWriter, r *http.Request, disputeId string)
	// (GET /accounts/me)
	GetMyAccount(w http.ResponseWriter, r *http.Request)
	// (PUT /accounts/me/payout-destination)
	SetPayoutDestination(w http.ResponseWriter, r *http.Request)
	// (POST /withdrawals)
	InitiateWithdrawal(w http.ResponseWriter, r *http.Request)
	// (GET /platform/stats)
	GetPlatformStats(w http.ResponseWriter, r *http.Request)
	// (POST /webhooks/{gateway}/payments)
	HandlePaymentWebhook(w http.ResponseWriter, r *http.Request, gateway string)
	// (POST /webhooks/{gateway}/payouts)
	HandlePayoutWebhook(w http.ResponseWriter, r *http.Request, gateway string)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts path parameters and dispatches to the ServerInterface.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) wrap(handler http.Handler) http.Handler {
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	return handler
}

func (siw *ServerInterfaceWrapper) plain(op func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		siw.wrap(http.HandlerFunc(op)).ServeHTTP(w, r)
	}
}

// withPath binds one required string path parameter, styled "simple".
func (siw *ServerInterfaceWrapper) withPath(name string, op func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var value string
		err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
		if err != nil {
			siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
			return
		}
		siw.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op(w, r, value)
		})).ServeHTTP(w, r)
	}
}

// InvalidParamFormatError is passed to ErrorHandlerFunc when a path parameter does not bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with routing matching the API, mounted on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Group(func(r chi.Router) {
		r.Post(base+"/payments", wrapper.plain(si.InitiatePayment))
		r.Get(base+"/payments/{paymentId}", wrapper.withPath("paymentId", si.GetPaymentById))
		r.Post(base+"/payments/{paymentId}/confirm", wrapper.withPath("paymentId", si.ConfirmReceipt))
		r.Post(base+"/payments/{paymentId}/disputes", wrapper.withPath("paymentId", si.FileDispute))
		r.Get(base+"/disputes/{disputeId}", wrapper.withPath("disputeId", si.GetDisputeById))
		r.Post(base+"/disputes/{disputeId}/resolve", wrapper.withPath("disputeId", si.ResolveDispute))
		r.Get(base+"/accounts/me", wrapper.plain(si.GetMyAccount))
		r.Put(base+"/accounts/me/payout-destination", wrapper.plain(si.SetPayoutDestination))
		r.Post(base+"/withdrawals", wrapper.plain(si.InitiateWithdrawal))
		r.Get(base+"/platform/stats", wrapper.plain(si.GetPlatformStats))
		r.Post(base+"/webhooks/{gateway}/payments", wrapper.withPath("gateway", si.HandlePaymentWebhook))
		r.Post(base+"/webhooks/{gateway}/payouts", wrapper.withPath("gateway", si.HandlePayoutWebhook))
	})
	return r
}
