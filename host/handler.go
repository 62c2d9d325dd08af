package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/tomyedwab/rdsdataapi/service"
	"github.com/tomyedwab/rdsdataapi/types"
)

// MaxRequestBytes bounds the size of a request body.
const MaxRequestBytes = 4 << 20

// Handler returns an http.Handler serving the Data API operations.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+service.PathExecute, h.wrap(handle(h.ExecuteStatement)))
	mux.HandleFunc("POST "+service.PathBatchExecute, h.wrap(handle(h.BatchExecuteStatement)))
	mux.HandleFunc("POST "+service.PathBeginTransaction, h.wrap(handle(h.BeginTransaction)))
	mux.HandleFunc("POST "+service.PathCommitTransaction, h.wrap(handle(h.CommitTransaction)))
	mux.HandleFunc("POST "+service.PathRollbackTransaction, h.wrap(handle(h.RollbackTransaction)))
	return mux
}

func (h *Host) wrap(next http.HandlerFunc) http.HandlerFunc {
	var middleware []func(http.HandlerFunc) http.HandlerFunc
	if h.signingKey != nil {
		middleware = append(middleware, h.tokenRequired)
	}
	middleware = append(middleware, limitBody, h.logRequests)
	return Chain(next, middleware...)
}

// Chain applies middleware so the last one listed runs first.
func Chain(h http.HandlerFunc, middleware ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

func handle[Req, Resp any](op func(context.Context, *Req) (*Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, service.NewErrorWithCause(service.ErrorTypeBadRequest, "malformed request body", err))
			return
		}

		resp, err := op(r.Context(), &req)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeError(w, service.NewErrorWithCause(service.ErrorTypeInternal, "failed to encode response", err))
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	errorType := service.ErrorTypeInternal
	message := err.Error()
	var serviceErr *service.Error
	if errors.As(err, &serviceErr) {
		errorType = serviceErr.Type
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(service.ErrorTypeHeader, errorType.Code())
	w.WriteHeader(errorType.StatusCode())
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Message: message})
}

func limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
		next.ServeHTTP(w, r)
	}
}

// tokenRequired checks the bearer token against the identifiers named in the
// request body.
func (h *Host) tokenRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, service.NewForbiddenError("missing bearer token"))
			return
		}
		claims, err := service.VerifyRequestToken(h.signingKey, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, service.NewErrorWithCause(service.ErrorTypeForbidden, "unauthorized", err))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, service.NewErrorWithCause(service.ErrorTypeBadRequest, "failed to read request body", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var ids struct {
			ResourceArn string `json:"resourceArn"`
			SecretArn   string `json:"secretArn"`
		}
		if err := json.Unmarshal(body, &ids); err != nil {
			writeError(w, service.NewErrorWithCause(service.ErrorTypeBadRequest, "malformed request body", err))
			return
		}
		if claims.Subject != ids.SecretArn || !slices.Contains(claims.Audience, ids.ResourceArn) {
			writeError(w, service.NewForbiddenError("token does not match the request"))
			return
		}

		next.ServeHTTP(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Host) logRequests(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		h.logger.Info("Request handled",
			"remoteAddr", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	}
}
