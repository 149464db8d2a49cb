// Sync and reconciliation HTTP handlers.
//
// This file exposes the trigger endpoints of the engine:
//   - POST /sync                 (full cycle across all configured services)
//   - POST /sync/{service}       (single-service cycle, optional force mode)
//   - POST /reconcile            (fuzzy duplicate repair pass)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/adapter"
	"github.com/jsvana/carrier-wave-sub002/internal/services"
	"github.com/jsvana/carrier-wave-sub002/internal/sysutil"
)

//
// Service contracts (context-aware)
//

// SyncService defines the orchestrator operations consumed by HTTP handlers.
//
// Implementations must honor the provided context for cancellation and
// timeouts; a cycle is serialized internally, so concurrent calls surface
// services.ErrSyncInProgress rather than racing.
type SyncService interface {
	// RunFullSync runs one cycle across every configured service.
	RunFullSync(ctx context.Context) (*services.SyncResult, error)
	// RunSync runs one cycle scoped to a single service; force switches the
	// merge to overwrite-mutable mode to repair mis-parsed data.
	RunSync(ctx context.Context, svc adapter.Service, force bool) (*services.SyncResult, error)
}

// ReconcileService defines the fuzzy duplicate-repair pass.
type ReconcileService interface {
	// Run merges near-duplicate contacts within the given time window.
	Run(ctx context.Context, window time.Duration) (*services.ReconcileResult, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the sync engine. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic; the DB handle is used only for the live-count query
// surface.
type Handlers struct {
	syncSvc SyncService
	recSvc  ReconcileService
	db      *gorm.DB
}

// New constructs a Handlers instance bound to the given services.
func New(syncSvc SyncService, recSvc ReconcileService, db *gorm.DB) *Handlers {
	return &Handlers{syncSvc: syncSvc, recSvc: recSvc, db: db}
}

// RunFullSync triggers one full sync cycle.
//
// @Summary     Run a full sync cycle
// @Description Downloads from every configured service, merges, and uploads
// @Description missing records. Per-service failures are contained and
// @Description reported in the result, never as an HTTP error.
// @Tags        sync
// @Produce     json
// @Success     200 {object} services.SyncResult
// @Failure     409 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /sync [post]
func (h *Handlers) RunFullSync(c *gin.Context) {
	res, err := h.syncSvc.RunFullSync(c.Request.Context())
	if err != nil {
		failSync(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RunServiceSync triggers a sync cycle for one service.
//
// @Summary     Run a single-service sync cycle
// @Description Same pipeline as the full sync, scoped to one service.
// @Description Pass force=true to overwrite mutable fields from the fresh
// @Description fetch (repair of previously mis-parsed data).
// @Tags        sync
// @Param       service path  string true  "service identifier (qrz, lotw, eqsl, clublog, pota)"
// @Param       force   query string false "overwrite mutable fields (true/false)"
// @Produce     json
// @Success     200 {object} services.SyncResult
// @Failure     404 {object} ErrorResponse
// @Failure     409 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /sync/{service} [post]
func (h *Handlers) RunServiceSync(c *gin.Context) {
	svc := adapter.Service(strings.ToLower(strings.TrimSpace(c.Param("service"))))
	force := sysutil.IsTruthy(c.Query("force"))

	res, err := h.syncSvc.RunSync(c.Request.Context(), svc, force)
	if err != nil {
		failSync(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// reconcileRequest is the optional body of POST /reconcile.
type reconcileRequest struct {
	// WindowMinutes is the fuzzy-match window; 0 selects the default (5).
	WindowMinutes int `json:"window_minutes" example:"5"`
}

// Reconcile runs the duplicate-repair pass.
//
// @Summary     Reconcile near-duplicate contacts
// @Description Merges records with matching callsign/band/mode whose
// @Description timestamps fall within the window but in different dedup
// @Description buckets. Safe to re-run; a clean store is a no-op.
// @Tags        sync
// @Accept      json
// @Param       body body reconcileRequest false "window override"
// @Produce     json
// @Success     200 {object} services.ReconcileResult
// @Failure     400 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /reconcile [post]
func (h *Handlers) Reconcile(c *gin.Context) {
	var req reconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	if req.WindowMinutes < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "window_minutes must be >= 0")
		return
	}

	res, err := h.recSvc.Run(c.Request.Context(), time.Duration(req.WindowMinutes)*time.Minute)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWindow) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeReconcileFailed, "reconciliation failed")
		return
	}
	ok(c, http.StatusOK, res)
}

// failSync maps orchestrator errors to HTTP responses.
func failSync(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownService):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrServiceNotConfigured):
		fail(c, http.StatusConflict, ErrCodeNotConfigured, err.Error())
	case errors.Is(err, services.ErrSyncInProgress):
		fail(c, http.StatusConflict, ErrCodeSyncInProgress, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSyncFailed, "sync cycle failed")
	}
}
