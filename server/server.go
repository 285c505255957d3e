// Package server exposes a DCA tracker over a JSON HTTP API.
//
// Every /api route requires a bearer token, the token subject is the owner of
// the transactions read and written.
//
//	GET    /api/price                 latest quote
//	GET    /api/summary?currency=USD  summary and metrics in a display currency
//	GET    /api/transactions?page=2   a page of transactions, most recent first
//	POST   /api/transactions          record a purchase
//	PUT    /api/transactions/{id}     replace a purchase
//	DELETE /api/transactions/{id}     delete a purchase
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/etnz/dca"
	"github.com/etnz/dca/auth"
	"github.com/etnz/dca/date"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// maxBodySize bounds the size of a transaction input.
const maxBodySize = 1 << 16

// Prices returns the latest quote, the zero Quote if none is known yet.
type Prices interface {
	Latest() dca.Quote
}

// Server serves the JSON API.
type Server struct {
	store    dca.Store
	prices   Prices
	asset    dca.Asset
	verifier *auth.Verifier
	log      *slog.Logger

	// PageSize is the number of transactions per page.
	PageSize int
	// Limiter bounds the request rate of the whole API, nil means unlimited.
	Limiter *rate.Limiter
	// Today returns the date used to reject future purchases.
	Today func() date.Date
}

// New returns a Server reading and writing store, pricing with prices, and
// authenticating owners with verifier.
func New(store dca.Store, prices Prices, asset dca.Asset, verifier *auth.Verifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    store,
		prices:   prices,
		asset:    asset,
		verifier: verifier,
		log:      logger,
		PageSize: dca.DefaultPageSize,
		Limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 30),
		Today:    date.Today,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(s.verifier))
		r.Get("/price", s.handlePrice)
		r.Get("/summary", s.handleSummary)
		r.Get("/transactions", s.handleList)
		r.Post("/transactions", s.handleCreate)
		r.Put("/transactions/{id}", s.handleUpdate)
		r.Delete("/transactions/{id}", s.handleDelete)
	})
	return r
}

type loggerKey struct{}

// logger returns the request scoped logger.
func (s *Server) logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return s.log
}

// requestLogger tags the request logger with the request id and logs every
// response.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.log.With(slog.String("requestID", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey{}, log)))
		log.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter != nil && !s.Limiter.Allow() {
			s.logger(r.Context()).Warn("rate limit exceeded", "path", r.URL.Path)
			sendJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// owner returns the authenticated owner, auth.Middleware guarantees there is one.
func owner(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	return id.ID
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := s.prices.Latest()
	if !q.Available() {
		s.fail(w, r, dca.ErrPriceUnavailable)
		return
	}
	sendJSON(w, http.StatusOK, q)
}

type summaryResponse struct {
	Display string       `json:"display"`
	Summary dca.Summary  `json:"summary"`
	Metrics *dca.Metrics `json:"metrics"` // nil until a price is known
	Quote   dca.Quote    `json:"quote"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	display := dca.Base
	if c := r.URL.Query().Get("currency"); c != "" {
		d, err := dca.ParseDisplay(c, s.asset)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		display = d
	}
	sum, err := s.store.Summary(r.Context(), owner(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := summaryResponse{Display: s.asset.Currency(display), Summary: sum, Quote: s.prices.Latest()}
	m, err := dca.ComputeMetrics(sum, resp.Quote, display)
	switch {
	case errors.Is(err, dca.ErrPriceUnavailable):
	case errors.Is(err, dca.ErrCurrencyMismatch):
		s.logger(r.Context()).Warn("no metrics", "owner", owner(r), "error", err)
	case err != nil:
		s.fail(w, r, err)
		return
	default:
		resp.Metrics = &m
	}
	sendJSON(w, http.StatusOK, resp)
}

type listResponse struct {
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	Total      int               `json:"total"`
	TotalPages int               `json:"totalPages"`
	Rows       []dca.Transaction `json:"rows"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page := dca.FirstPage(s.PageSize)
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			sendJSONError(w, "page must be a number", http.StatusBadRequest)
			return
		}
		page.Number = n
	}
	res, err := s.store.Find(r.Context(), owner(r), page.Normalize())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// past the end: serve the last page instead
	if last := res.TotalPages(); last > 0 && res.Page.Number > last {
		res, err = s.store.Find(r.Context(), owner(r), dca.Page{Number: last, Size: res.Page.Size})
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}
	rows := res.Rows
	if rows == nil {
		rows = []dca.Transaction{}
	}
	sendJSON(w, http.StatusOK, listResponse{
		Page:       res.Page.Number,
		Size:       res.Page.Size,
		Total:      res.Total,
		TotalPages: res.TotalPages(),
		Rows:       rows,
	})
}

// candidate decodes the request body into a validated transaction of the
// request owner.
func (s *Server) candidate(w http.ResponseWriter, r *http.Request) (dca.Transaction, error) {
	var in dca.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return dca.Transaction{}, &badRequest{err}
	}
	tx, err := in.Transaction(owner(r), s.asset)
	if err != nil {
		return dca.Transaction{}, err
	}
	if err := dca.Validate(tx, s.Today()); err != nil {
		return dca.Transaction{}, err
	}
	return tx, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	tx, err := s.candidate(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err = s.store.Insert(r.Context(), tx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger(r.Context()).Info("transaction recorded", "id", tx.ID, "owner", tx.Owner)
	w.Header().Set("Location", "/api/transactions/"+tx.ID)
	sendJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	tx, err := s.candidate(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx.ID = chi.URLParam(r, "id")
	tx, err = s.store.Update(r.Context(), tx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger(r.Context()).Info("transaction updated", "id", tx.ID, "owner", tx.Owner)
	sendJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), owner(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger(r.Context()).Info("transaction deleted", "id", id, "owner", owner(r))
	w.WriteHeader(http.StatusNoContent)
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

// fail maps err to a status code and writes it as a JSON error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid *dca.ValidationError
		bad     *badRequest
		status  int
	)
	switch {
	case errors.As(err, &invalid):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": invalid.Error(), "field": invalid.Field})
		return
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	case errors.Is(err, dca.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dca.ErrCurrencyMismatch):
		status = http.StatusConflict
	case errors.Is(err, dca.ErrPriceUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		s.logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	sendJSONError(w, err.Error(), status)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, map[string]string{"error": message})
}
