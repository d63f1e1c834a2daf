package quote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/jobs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/repo"
	"github.com/noah-isme/toko-pricing/internal/tenant"
)

// Quoter prices a cart for a tenant.
type Quoter interface {
	Quote(ctx context.Context, tenantID uuid.UUID, in Input) (pricing.Result, error)
}

// Enqueuer schedules a background tax pool refresh and returns the task id.
// jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueTaxPoolRefresh(ctx context.Context, tenantID uuid.UUID, country string) (string, error)
}

// Handler serves the pricing endpoints.
type Handler struct {
	Svc      Quoter
	Jobs     Enqueuer
	Validate *validator.Validate
}

// Quote handles POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	tenantID, err := tenant.IDFrom(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", err.Error(), nil)
		return
	}
	var payload Input
	if !decode(w, r, &payload) {
		return
	}
	out, err := h.Svc.Quote(r.Context(), tenantID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// RefreshTaxPool handles POST /api/v1/admin/tax-pools/refresh.
func (h *Handler) RefreshTaxPool(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "refresh queue not configured", nil)
		return
	}
	var payload RefreshInput
	if !decode(w, r, &payload) {
		return
	}
	v := h.Validate
	if v == nil {
		v = NewValidator()
	}
	if err := validate(v, payload); err != nil {
		writeError(w, err)
		return
	}
	tenantID := uuid.MustParse(payload.TenantID)
	country := strings.ToUpper(payload.Country)
	taskID, err := h.Jobs.EnqueueTaxPoolRefresh(r.Context(), tenantID, country)
	if errors.Is(err, jobs.ErrRefreshPending) {
		common.JSONError(w, http.StatusConflict, "REFRESH_PENDING", err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusAccepted, map[string]string{
		"taskId":   taskID,
		"tenantId": tenantID.String(),
		"country":  country,
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", map[string]string{"reason": err.Error()})
		return false
	}
	return true
}

// writeError maps engine kinds to 422 with an upper-case code, missing
// tenant data to 404/422 and everything else through common.WriteError.
func writeError(w http.ResponseWriter, err error) {
	var pe *pricing.Error
	switch {
	case errors.As(err, &pe):
		var details map[string]int
		if pe.Line >= 0 {
			details = map[string]int{"line": pe.Line}
		}
		msg := string(pe.Kind)
		if pe.Err != nil {
			msg = pe.Err.Error()
		}
		common.JSONError(w, http.StatusUnprocessableEntity, strings.ToUpper(string(pe.Kind)), msg, details)
	case errors.Is(err, pricing.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, repo.ErrTenantNotFound):
		common.JSONError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "tenant not found", nil)
	case errors.Is(err, repo.ErrCouponNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_NOT_FOUND", "coupon not found", nil)
	case errors.Is(err, repo.ErrGiftCardNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "GIFT_CARD_NOT_FOUND", "gift card not found", nil)
	default:
		common.WriteError(w, err)
	}
}
