package email

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to" validate:"required,email"`
	Subject  string `json:"subject" validate:"required"`
	BodyHTML string `json:"body_html" validate:"required"`
	Tag      string `json:"tag,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the recipient is a valid address and that subject
// and body are present.
func (p SendEmailParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Join(ErrInvalidParams, err)
	}
	return nil
}

func validAddress(addr string) bool {
	return validate.Var(addr, "required,email") == nil
}
