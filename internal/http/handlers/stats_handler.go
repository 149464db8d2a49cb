// Query-surface HTTP handlers.
//
// This file exposes the read-only endpoints consumed by presentation layers:
//   - GET /stats     (record count + per-service present/pending counts)
//   - GET /contacts  (paginated contact listing)
//
// All counts are computed live from the store; the engine keeps no cached
// counters.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
	"github.com/jsvana/carrier-wave-sub002/internal/repo"
	"github.com/jsvana/carrier-wave-sub002/internal/utils"
)

// StatsResponse aggregates the live store counts.
type StatsResponse struct {
	// TotalContacts is the number of persisted contact records.
	TotalContacts int64 `json:"total_contacts"`
	// Services maps service identifiers to present/pending counts.
	Services map[string]repo.ServiceStats `json:"services"`
}

// ContactsPage is the paginated listing envelope.
type ContactsPage struct {
	Items    []domain.ContactRecord `json:"items"`
	Page     int                    `json:"page"     example:"1"`
	PageSize int                    `json:"page_size" example:"20"`
	Total    int64                  `json:"total"    example:"134"`
}

// GetStats returns live record and presence counts.
//
// @Summary     Store statistics
// @Description Total contact count plus, per service, how many records are
// @Description confirmed present and how many still await upload.
// @Tags        contacts
// @Produce     json
// @Success     200 {object} StatsResponse
// @Failure     500 {object} ErrorResponse
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := repo.CountContacts(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to count contacts")
		return
	}
	perService, err := repo.PresenceStats(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to aggregate presence")
		return
	}

	ok(c, http.StatusOK, StatsResponse{TotalContacts: total, Services: perService})
}

// ListContacts returns a page of contact records, most recent first.
//
// @Summary     List contacts (paginated)
// @Tags        contacts
// @Param       page      query int false "page number (default 1)"
// @Param       page_size query int false "page size (default 20, max 100)"
// @Produce     json
// @Success     200 {object} ContactsPage
// @Failure     500 {object} ErrorResponse
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	ctx := c.Request.Context()

	page := utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := utils.AtoiDefault(c.Query("page_size"), 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	total, err := repo.CountContacts(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to count contacts")
		return
	}

	items := []domain.ContactRecord{}
	if total > 0 {
		items, err = repo.ListContactsPage(ctx, h.db, (page-1)*pageSize, pageSize)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list contacts")
			return
		}
	}

	ok(c, http.StatusOK, ContactsPage{Items: items, Page: page, PageSize: pageSize, Total: total})
}
