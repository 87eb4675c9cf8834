package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/paygate/pkg/email"
	"github.com/dmitrymomot/paygate/pkg/email/templates"
	"github.com/dmitrymomot/paygate/pkg/identity"
	"github.com/dmitrymomot/paygate/pkg/logger"
)

type manualCheckoutRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

type manualPlan struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type manualCheckoutResponse struct {
	Success bool       `json:"success"`
	Plan    manualPlan `json:"plan"`
}

// manualCheckout records a purchase request while payment processing is
// manual: the administrator is told what to charge and the buyer gets a
// confirmation. Access is granted out of band.
func (h *handler) manualCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, _ := identity.SessionFromContext(ctx)

	var body manualCheckoutRequest
	if err := decodeJSON(w, r, &body); err != nil {
		status, msg := errorStatus(r, err)
		writeError(w, r, status, msg)
		return
	}
	plan, ok := h.svc.Catalog().Plan(body.PlanID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown plan")
		return
	}

	u, err := h.svc.GetUser(ctx, s.UserID)
	if err != nil {
		h.userLookupFailed(w, r, s.UserID, err)
		return
	}

	order := templates.ManualOrder{
		BuyerName:  u.Name,
		BuyerEmail: u.Email,
		UserID:     u.ID,
		PlanName:   plan.Name,
		Price:      plan.Price.String(),
	}
	if err := h.sendManualOrder(r, order); err != nil {
		h.logger.ErrorContext(ctx, "manual checkout notification failed",
			logger.UserID(u.ID), logger.PlanID(plan.ID), logger.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to send notification")
		return
	}

	h.logger.InfoContext(ctx, "manual checkout requested", logger.UserID(u.ID), logger.PlanID(plan.ID))
	writeJSON(w, http.StatusOK, manualCheckoutResponse{
		Success: true,
		Plan:    manualPlan{Name: plan.Name, Price: order.Price},
	})
}

func (h *handler) sendManualOrder(r *http.Request, order templates.ManualOrder) error {
	if h.mailer == nil || h.adminEmail == "" {
		return errors.New("manual checkout mailer is not configured")
	}
	ctx := r.Context()

	adminBody, err := templates.Render(ctx, templates.ManualOrderAdmin(order))
	if err != nil {
		return err
	}
	if err := h.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   h.adminEmail,
		Subject:  "New purchase request: " + order.PlanName,
		BodyHTML: adminBody,
		Tag:      "manual-order-admin",
	}); err != nil {
		return err
	}

	if order.BuyerEmail == "" {
		return nil
	}
	buyerBody, err := templates.Render(ctx, templates.ManualOrderConfirmation(order))
	if err != nil {
		return err
	}
	return h.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   order.BuyerEmail,
		Subject:  "We received your request for " + order.PlanName,
		BodyHTML: buyerBody,
		Tag:      "manual-order-confirmation",
	})
}
