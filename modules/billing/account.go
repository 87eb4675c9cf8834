package billing

import (
	"net/http"

	core "github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/identity"
)

type plansResponse struct {
	Plans     []core.Plan     `json:"plans"`
	Providers []core.Provider `json:"providers"`
}

func (h *handler) plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, plansResponse{
		Plans:     h.svc.Catalog().Plans(),
		Providers: h.svc.Providers(),
	})
}

// meResponse carries only the public part of the entitlement.
type meResponse struct {
	UserID             string      `json:"userId"`
	HasAccess          bool        `json:"hasAccess"`
	PlanName           string      `json:"planName,omitempty"`
	SubscriptionStatus core.Status `json:"subscriptionStatus,omitempty"`
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	s, _ := identity.SessionFromContext(r.Context())
	u, err := h.svc.GetUser(r.Context(), s.UserID)
	if err != nil {
		h.userLookupFailed(w, r, s.UserID, err)
		return
	}
	ent := u.Entitlement()
	writeJSON(w, http.StatusOK, meResponse{
		UserID:             u.ID,
		HasAccess:          ent.HasAccess,
		PlanName:           ent.PlanName,
		SubscriptionStatus: ent.Status,
	})
}
