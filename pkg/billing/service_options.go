package billing

import "log/slog"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithProvider registers a billing provider.
// Panics if a provider with the same name is already registered
// to prevent accidental overwrites and ensure explicit configuration.
func WithProvider(p BillingProvider) ServiceOption {
	return func(s *Service) {
		if p == nil {
			return
		}
		if _, exists := s.providers[p.Provider()]; exists {
			panic("billing: provider " + string(p.Provider()) + " already registered")
		}
		s.providers[p.Provider()] = p
	}
}

// WithIndex sets the customer ID index used for resolution and linking.
func WithIndex(idx CustomerIndex) ServiceOption {
	return func(s *Service) {
		s.index = idx
	}
}

// WithEventGuard sets the duplicate-delivery guard.
func WithEventGuard(g EventGuard) ServiceOption {
	return func(s *Service) {
		s.guard = g
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
