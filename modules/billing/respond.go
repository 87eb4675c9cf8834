package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	core "github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/environment"
)

const maxJSONBody = 64 << 10

var validate = newValidator()

// newValidator reports field errors by JSON name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into v and validates it.
// An empty body decodes as the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Join(core.ErrValidation, err)
	}
	if err := validate.Struct(v); err != nil {
		return errors.Join(core.ErrValidation, err)
	}
	return nil
}

// errorStatus maps checkout, portal and configuration errors onto HTTP
// statuses and a client-safe message. Remote failure details stay in the logs.
func errorStatus(r *http.Request, err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrProviderNotConfigured):
		return http.StatusNotFound, "unknown or disabled payment provider"
	case errors.Is(err, core.ErrPlanNotFound):
		return http.StatusBadRequest, "unknown plan"
	case errors.Is(err, core.ErrMissingCustomerID):
		return http.StatusBadRequest, "no billing account for this provider"
	case core.IsValidationError(err):
		return http.StatusBadRequest, validationMessage(err)
	case core.IsAuthenticationError(err):
		return http.StatusBadRequest, "invalid webhook signature"
	case errors.Is(err, core.ErrWebhookSecretMissing), errors.Is(err, core.ErrMissingAPIKey):
		if environment.IsProduction(r.Context()) {
			return http.StatusInternalServerError, "internal server error"
		}
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func validationMessage(err error) string {
	for _, target := range []error{
		core.ErrMissingPlanID,
		core.ErrMissingRedirectURL,
		core.ErrMissingCancelURL,
		core.ErrMissingReturnURL,
		core.ErrInvalidMode,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].Field() == "PlanID" && verrs[0].Tag() == "required" {
			return core.ErrMissingPlanID.Error()
		}
		return "invalid field: " + verrs[0].Field()
	}
	return "invalid request"
}
