// Package api exposes the refresh and cache operations over a small
// JSON HTTP surface. It contains no sync logic of its own: handlers
// validate input, call into the sync service or cache store, and map
// typed errors onto status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/unimail/unimail/internal/account"
	"github.com/unimail/unimail/internal/cache"
	"github.com/unimail/unimail/internal/model"
	"github.com/unimail/unimail/internal/sync"
)

// Refresher runs the refresh workflow for one account.
type Refresher interface {
	Refresh(ctx context.Context, accountID string) (*sync.Result, error)
}

// Server is the HTTP API server.
type Server struct {
	addr     string
	refresh  Refresher
	cache    *cache.Store
	accounts account.Store
	log      *logrus.Logger
	router   *mux.Router
	server   *http.Server
}

// NewServer creates an HTTP API server listening on addr.
func NewServer(
	addr string,
	refresh Refresher,
	cacheStore *cache.Store,
	accounts account.Store,
	log *logrus.Logger,
) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		addr:     addr,
		refresh:  refresh,
		cache:    cacheStore,
		accounts: accounts,
		log:      log,
	}
	s.router = s.setupRoutes()
	return s
}

// ServeHTTP delegates to the configured router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Error("shutting down HTTP server")
		}
	}()

	s.log.WithField("addr", s.addr).Info("HTTP API listening")
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{accountID}/emails", s.handleListEmails).Methods(http.MethodGet)
	api.HandleFunc(
		"/accounts/{accountID}/emails/{emailID}/flags",
		s.handleUpdateFlags,
	).Methods(http.MethodPatch)

	router.Use(s.loggingMiddleware)
	return router
}

// refreshRequest is the body of POST /api/refresh.
type refreshRequest struct {
	AccountID string `json:"accountId"`
}

// refreshResponse is the success body of POST /api/refresh.
type refreshResponse struct {
	NewEmailsCount int           `json:"newEmailsCount"`
	TotalEmails    int           `json:"totalEmails"`
	Emails         []model.Email `json:"emails"`
	Source         string        `json:"source"`
}

// emptyMailboxResponse is returned when the server-side mailbox holds
// no messages at all.
type emptyMailboxResponse struct {
	Message string        `json:"message"`
	Count   int           `json:"count"`
	Emails  []model.Email `json:"emails"`
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleRefresh triggers a synchronous refresh for one account and
// returns the merged view.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.refresh.Refresh(r.Context(), req.AccountID)
	if err != nil {
		s.writeRefreshError(w, err)
		return
	}

	if result.Message != "" && result.NewEmails == 0 {
		writeJSON(w, http.StatusOK, emptyMailboxResponse{
			Message: result.Message,
			Count:   0,
			Emails:  []model.Email{},
		})
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		NewEmailsCount: result.NewEmails,
		TotalEmails:    result.TotalEmails,
		Emails:         result.Emails,
		Source:         result.Source,
	})
}

// writeRefreshError maps refresh error kinds onto HTTP status codes.
func (s *Server) writeRefreshError(w http.ResponseWriter, err error) {
	switch {
	case sync.IsKind(err, sync.KindInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account id is required"})
	case sync.IsKind(err, sync.KindAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "account not found"})
	case sync.IsKind(err, sync.KindConnection):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "cannot connect to mail server; check account settings",
		})
	default:
		s.log.WithError(err).Error("refresh failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "refresh failed",
			Details: err.Error(),
		})
	}
}

// handleListAccounts returns all configured accounts, without
// credentials.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.ListAccounts(r.Context())
	if err != nil {
		s.log.WithError(err).Error("listing accounts failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "listing accounts failed",
			Details: err.Error(),
		})
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// handleListEmails returns the cached collection for one account.
func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountID"]
	writeJSON(w, http.StatusOK, s.cache.GetAllEmails(accountID))
}

// flagsRequest is the body of the flag-update endpoint. Absent fields
// leave the corresponding flag unchanged.
type flagsRequest struct {
	IsRead    *bool `json:"isRead"`
	IsStarred *bool `json:"isStarred"`
}

// handleUpdateFlags applies a read/starred update to one cached record.
func (s *Server) handleUpdateFlags(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req flagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	err := s.cache.UpdateFlags(vars["accountID"], vars["emailID"], cache.FlagUpdate{
		IsRead:    req.IsRead,
		IsStarred: req.IsStarred,
	})
	if err != nil {
		if errors.Is(err, cache.ErrEmailNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "email not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "updating flags failed",
			Details: err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// loggingMiddleware logs one line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
