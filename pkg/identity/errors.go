package identity

import "errors"

var (
	ErrMissingSecretKey = errors.New("identity: clerk secret key is required")
	ErrUnauthenticated  = errors.New("identity: no valid session")
	ErrMalformedUser    = errors.New("identity: clerk user metadata is not a JSON object")
)
