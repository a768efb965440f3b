package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"storefront/internal/apperr"
	"storefront/internal/retry"

	"github.com/go-chi/chi/v5/middleware"
)

type errorBody struct {
	Code    apperr.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// errorResponse is the single exit for failed requests. Untyped errors are
// reported as INTERNAL_ERROR and only their cause is logged.
func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) && !apperr.IsCode(err, apperr.CodeTransient) {
		err = apperr.Transient("upstream unavailable", err).With("attempts", exhausted.Attempts)
	}

	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal(err)
	}
	status := apperr.HTTPStatus(ae.Code)

	fields := []any{
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"code", ae.Code,
		"error", err.Error(),
	}
	switch {
	case status >= 500:
		app.logger.Errorw("request failed", fields...)
	default:
		app.logger.Warnw("request rejected", fields...)
	}

	body := errorBody{Code: ae.Code, Message: ae.Message, Details: ae.Details}
	if ae.Code == apperr.CodeInternal {
		body.Message = "the server encountered a problem"
		body.Details = nil
	}
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ae.RetryAfter.Seconds()))))
	}

	type envelope struct {
		Error errorBody `json:"error"`
	}
	writeJSON(w, status, &envelope{Error: body})
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
	app.errorResponse(w, r, apperr.Wrap(apperr.CodeUnauthorized, "unauthorized", err))
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, apperr.Wrap(apperr.CodeUnauthorized, "unauthorized", err))
}
