package billing

import "errors"

var (
	// Authentication
	ErrInvalidSignature     = errors.New("billing: webhook signature verification failed")
	ErrMissingSignature     = errors.New("billing: webhook signature header is missing")
	ErrWebhookSecretMissing = errors.New("billing: webhook secret is not configured")

	// Request validation, checked before any remote call
	ErrValidation         = errors.New("billing: invalid request")
	ErrMissingPlanID      = errors.New("billing: plan identifier is required")
	ErrMissingRedirectURL = errors.New("billing: redirect URL is required")
	ErrMissingCancelURL   = errors.New("billing: cancel URL is required")
	ErrMissingCustomerID  = errors.New("billing: provider customer ID is required")
	ErrMissingReturnURL   = errors.New("billing: return URL is required")
	ErrInvalidMode        = errors.New("billing: checkout mode must be payment or subscription")
	ErrPlanNotFound       = errors.New("billing: plan not found in catalog")

	// Resolution
	ErrUserNotFound      = errors.New("billing: user not found")
	ErrCustomerNotLinked = errors.New("billing: customer is not linked to a user")

	// Remote calls
	ErrRemoteCall    = errors.New("billing: remote call failed")
	ErrNoCheckoutURL = errors.New("billing: no checkout URL returned from provider")
	ErrNoPortalURL   = errors.New("billing: no portal URL returned from provider")

	// Configuration
	ErrProviderNotConfigured = errors.New("billing: provider is not configured")
	ErrMissingAPIKey         = errors.New("billing: provider API key is required")
	ErrMissingStoreID        = errors.New("billing: lemon squeezy store ID is required")
	ErrInvalidPayload        = errors.New("billing: malformed webhook payload")
	ErrInvalidCatalog        = errors.New("billing: invalid plan catalog")
	ErrFailedToLoadPlans     = errors.New("billing: failed to load plans")
)

var validationErrors = []error{
	ErrValidation,
	ErrMissingPlanID,
	ErrMissingRedirectURL,
	ErrMissingCancelURL,
	ErrMissingCustomerID,
	ErrMissingReturnURL,
	ErrInvalidMode,
	ErrPlanNotFound,
}

// IsValidationError reports whether err was raised by local request validation.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthenticationError reports whether err means the webhook could not be authenticated.
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrMissingSignature)
}
