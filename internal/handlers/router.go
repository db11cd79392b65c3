package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ventortech/merpwms/internal/buildinfo"
	"github.com/ventortech/merpwms/internal/metrics"
	"github.com/ventortech/merpwms/internal/middleware"
	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/picking"
	"github.com/ventortech/merpwms/internal/twofactor"
	"github.com/ventortech/merpwms/internal/wave"
	"github.com/ventortech/merpwms/internal/websocket"
	"github.com/ventortech/merpwms/web"
)

// BatchService is the batch API used by the handlers
type BatchService interface {
	CreateBatch(ctx context.Context, in wave.BatchInput) (*models.StockPickingBatch, error)
	WriteBatch(ctx context.Context, id int64, patch wave.BatchPatch) (*models.StockPickingBatch, error)
	Batch(ctx context.Context, id int64) (*models.StockPickingBatch, error)
	WaveType(ctx context.Context, batchID int64) (*int64, error)
	ChangePickingType(ctx context.Context, pickingID, typeID int64) (*models.StockPicking, error)
	FirstProcPicking(ctx context.Context, pickingID int64) (*models.StockPicking, error)
	ConfirmPicking(ctx context.Context, batchID int64) (*models.StockPickingBatch, error)
	Done(ctx context.Context, batchID int64) (*wave.ActionResult, error)
}

// PickingLister builds sorted picking lists
type PickingLister interface {
	PickingList(ctx context.Context, companyID *int64, pickingID int64) (*picking.List, error)
}

// RoutingStore reads and writes company routing settings
type RoutingStore interface {
	Company(ctx context.Context, id int64) (*models.ResCompany, error)
	UpdateRouting(ctx context.Context, id int64, strategy picking.Strategy, order picking.Order) (*models.ResCompany, error)
}

// LoginService runs the login flow and 2FA administration
type LoginService interface {
	Login(ctx context.Context, a twofactor.Attempt) (twofactor.Outcome, error)
	EnableTwoFactor(ctx context.Context, actor *models.UserAuth, ids []string) error
	DisableTwoFactor(ctx context.Context, actor *models.UserAuth, ids []string) error
	DiscardCredentials(ctx context.Context, ids []string) error
}

// UserDirectory looks users up
type UserDirectory interface {
	ByID(ctx context.Context, id string) (*models.UserAuth, error)
	List(ctx context.Context) ([]models.UserAuth, error)
}

// SyncStatus reports the host ERP synchronisation
type SyncStatus interface {
	Status() (time.Time, error)
}

// Deps are the collaborators of the router. Metrics, Hub and Sync are
// optional.
type Deps struct {
	Batches      BatchService
	Pickings     PickingLister
	Routing      RoutingStore
	Logins       LoginService
	Users        UserDirectory
	Pages        *web.Templates
	Hub          *websocket.Hub
	Metrics      *metrics.Metrics
	Sync         SyncStatus
	JWTSecret    string
	SecureCookie bool
	Log          zerolog.Logger
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	Deps
	log zerolog.Logger
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		Deps:   d,
		log:    d.Log.With().Str("component", "http").Logger(),
	}

	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Login pages
	r.HandleFunc("/web/login", r.webLoginPage).Methods("GET")
	r.HandleFunc("/web/login", r.webLogin).Methods("POST")
	r.HandleFunc("/web/logout", r.webLogout).Methods("GET", "POST")

	// Auth routes
	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/login", r.login).Methods("POST")
	authRoutes.HandleFunc("/logout", r.logout).Methods("POST")

	auth := middleware.NewAuth(d.JWTSecret)

	if d.Hub != nil {
		r.Handle("/ws", auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWs(d.Hub, w, req)
		}))).Methods("GET")
	}

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware)
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	batches := api.PathPrefix("/batches").Subrouter()
	batches.HandleFunc("", r.createBatch).Methods("POST")
	batches.HandleFunc("/{id:[0-9]+}", r.getBatch).Methods("GET")
	batches.HandleFunc("/{id:[0-9]+}", r.writeBatch).Methods("PATCH")
	batches.HandleFunc("/{id:[0-9]+}/wave-type", r.getWaveType).Methods("GET")
	batches.HandleFunc("/{id:[0-9]+}/confirm", r.confirmBatch).Methods("POST")
	batches.HandleFunc("/{id:[0-9]+}/done", r.doneBatch).Methods("POST")

	pickings := api.PathPrefix("/pickings").Subrouter()
	pickings.HandleFunc("/{id:[0-9]+}/type", r.changePickingType).Methods("PUT")
	pickings.HandleFunc("/{id:[0-9]+}/first-proc-picking", r.firstProcPicking).Methods("GET")
	pickings.HandleFunc("/{id:[0-9]+}/list", r.pickingList).Methods("GET")
	pickings.HandleFunc("/{id:[0-9]+}/list.pdf", r.pickingListPDF).Methods("GET")

	companies := api.PathPrefix("/companies").Subrouter()
	companies.HandleFunc("/{id:[0-9]+}/routing", r.getRouting).Methods("GET")
	companies.Handle("/{id:[0-9]+}/routing", middleware.RequireAdmin(http.HandlerFunc(r.updateRouting))).Methods("PUT")

	users := api.PathPrefix("/users").Subrouter()
	users.Handle("", middleware.RequireAdmin(http.HandlerFunc(r.listUsers))).Methods("GET")
	users.HandleFunc("/2fa/enable", r.enableTwoFactor).Methods("POST")
	users.HandleFunc("/2fa/disable", r.disableTwoFactor).Methods("POST")
	users.HandleFunc("/2fa/discard", r.discardTwoFactor).Methods("POST")

	r.Handle("/", http.RedirectHandler("/web/login", http.StatusFound)).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"buildTime":  buildinfo.BuildTime,
		"commitHash": buildinfo.CommitHash,
		"startTime":  buildinfo.StartTime,
	})
}

// getStatus returns the synchronisation state
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	status := map[string]interface{}{
		"status": "running",
		"odoo":   "disabled",
	}
	if r.Sync != nil {
		last, err := r.Sync.Status()
		status["odoo"] = "enabled"
		if !last.IsZero() {
			status["lastSync"] = last.UTC().Format(time.RFC3339)
		}
		if err != nil {
			status["lastSyncError"] = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, status)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps service errors to HTTP statuses
func (r *Router) respondServiceError(w http.ResponseWriter, err error) {
	var consistency *wave.ConsistencyError
	var access *twofactor.AccessError
	switch {
	case errors.As(err, &consistency):
		respondError(w, http.StatusUnprocessableEntity, consistency.Message)
	case errors.As(err, &access):
		respondError(w, http.StatusForbidden, access.Message)
	case errors.Is(err, wave.ErrNotFound), errors.Is(err, picking.ErrNotFound), errors.Is(err, twofactor.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "Record not found")
	default:
		r.log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func pathID(req *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
}

func decodeJSON(req *http.Request, v interface{}) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
