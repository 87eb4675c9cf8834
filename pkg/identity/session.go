package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwks"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

// SessionCookie is the cookie Clerk's frontend SDKs store the session token in.
const SessionCookie = "__session"

// Session is the authenticated caller of a request.
type Session struct {
	UserID    string
	SessionID string
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by Authenticate.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.UserID != ""
}

// TokenVerifier validates a session token and returns its session.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Session, error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (Session, error)

// Verify implements TokenVerifier.
func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (Session, error) {
	return f(ctx, token)
}

// ClerkVerifier verifies Clerk session JWTs against the instance JWKS.
type ClerkVerifier struct {
	jwks *jwks.Client
}

// NewClerkVerifier creates a verifier using the secret key to fetch the JWKS.
func NewClerkVerifier(cfg Config) (*ClerkVerifier, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}
	return &ClerkVerifier{jwks: jwks.NewClient(clientConfig(cfg))}, nil
}

// Verify implements TokenVerifier.
func (v *ClerkVerifier) Verify(ctx context.Context, token string) (Session, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token:      token,
		JWKSClient: v.jwks,
	})
	if err != nil {
		return Session{}, err
	}
	if claims.Subject == "" {
		return Session{}, ErrUnauthenticated
	}
	return Session{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}

// Authenticate attaches a Session to requests carrying a valid token in the
// Authorization bearer header or the session cookie. Requests without one
// pass through anonymously; use RequireSession to reject them.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" || v == nil {
				next.ServeHTTP(w, r)
				return
			}
			s, err := v.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// RequireSession responds 401 to requests without a session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
