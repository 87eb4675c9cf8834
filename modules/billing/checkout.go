package billing

import (
	"errors"
	"net/http"
	"time"

	core "github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/identity"
	"github.com/dmitrymomot/paygate/pkg/logger"
)

type checkoutRequest struct {
	PlanID       string `json:"planId"`
	SuccessURL   string `json:"successUrl" validate:"omitempty,url"`
	CancelURL    string `json:"cancelUrl" validate:"omitempty,url"`
	Mode         string `json:"mode" validate:"omitempty,oneof=payment subscription"`
	DiscountCode string `json:"discountCode" validate:"omitempty,max=64"`
}

type checkoutResponse struct {
	URL       string     `json:"url"`
	SessionID string     `json:"sessionId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// checkout returns a hosted checkout URL. Buyer details are prefilled from
// the session when the caller is signed in; anonymous checkout is allowed.
func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}

	var body checkoutRequest
	if err := decodeJSON(w, r, &body); err != nil {
		status, msg := errorStatus(r, err)
		writeError(w, r, status, msg)
		return
	}

	req := core.CheckoutRequest{
		PlanID:       body.PlanID,
		SuccessURL:   body.SuccessURL,
		CancelURL:    body.CancelURL,
		Mode:         core.CheckoutMode(body.Mode),
		DiscountCode: body.DiscountCode,
	}
	if s, ok := identity.SessionFromContext(ctx); ok {
		req.UserID = s.UserID
		if u, err := h.svc.GetUser(ctx, s.UserID); err == nil {
			req.Email = u.Email
			req.Name = u.Name
			req.CustomerID = u.Entitlement().CustomerID(provider)
		} else {
			h.logger.WarnContext(ctx, "checkout prefill skipped", logger.UserID(s.UserID), logger.Error(err))
		}
	}

	link, err := h.svc.CreateCheckoutLink(ctx, provider, req)
	h.metrics.ObserveCheckout(provider, err)
	if err != nil {
		status, msg := errorStatus(r, err)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "checkout link creation failed",
				logger.Provider(string(provider)), logger.PlanID(req.PlanID), logger.Error(err))
		}
		writeError(w, r, status, msg)
		return
	}

	resp := checkoutResponse{URL: link.URL, SessionID: link.SessionID}
	if !link.ExpiresAt.IsZero() {
		resp.ExpiresAt = &link.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl" validate:"omitempty,url"`
}

type portalResponse struct {
	URL              string `json:"url"`
	CancelURL        string `json:"cancelUrl,omitempty"`
	UpdatePaymentURL string `json:"updatePaymentUrl,omitempty"`
}

// portal returns a customer portal URL for the signed-in user. The customer
// ID always comes from backend metadata, never from the request.
func (h *handler) portal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}
	s, _ := identity.SessionFromContext(ctx)

	var body portalRequest
	if err := decodeJSON(w, r, &body); err != nil {
		status, msg := errorStatus(r, err)
		writeError(w, r, status, msg)
		return
	}

	u, err := h.svc.GetUser(ctx, s.UserID)
	if err != nil {
		h.userLookupFailed(w, r, s.UserID, err)
		return
	}
	account := u.Entitlement().Account(provider)

	link, err := h.svc.CreatePortalLink(ctx, provider, core.PortalRequest{
		CustomerID:     account.CustomerID,
		SubscriptionID: account.SubscriptionID,
		ReturnURL:      body.ReturnURL,
	})
	h.metrics.ObservePortal(provider, err)
	if err != nil {
		status, msg := errorStatus(r, err)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "portal link creation failed",
				logger.Provider(string(provider)), logger.UserID(s.UserID), logger.Error(err))
		}
		writeError(w, r, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, portalResponse{
		URL:              link.URL,
		CancelURL:        link.CancelURL,
		UpdatePaymentURL: link.UpdatePaymentURL,
	})
}

func (h *handler) userLookupFailed(w http.ResponseWriter, r *http.Request, userID string, err error) {
	if errors.Is(err, core.ErrUserNotFound) {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.logger.ErrorContext(r.Context(), "user lookup failed", logger.UserID(userID), logger.Error(err))
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}
