package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/email"
)

func TestSendEmailParamsValidate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{SendTo: "user@example.com", Subject: "Hi", BodyHTML: "<p>x</p>"}

	tests := []struct {
		name    string
		mutate  func(*email.SendEmailParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(*email.SendEmailParams) {}},
		{name: "missing recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "" }, wantErr: true},
		{name: "bad recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }, wantErr: true},
		{name: "missing subject", mutate: func(p *email.SendEmailParams) { p.Subject = "" }, wantErr: true},
		{name: "missing body", mutate: func(p *email.SendEmailParams) { p.BodyHTML = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, email.ErrInvalidParams)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir, nil)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "admin@example.com",
		Subject:  "New purchase request",
		BodyHTML: "<p>Pro</p>",
		Tag:      "manual order",
	})
	require.NoError(t, err)

	htmlFiles, err := filepath.Glob(filepath.Join(dir, "*_manual_order.html"))
	require.NoError(t, err)
	require.Len(t, htmlFiles, 1)
	body, err := os.ReadFile(htmlFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "<p>Pro</p>", string(body))

	jsonFiles, err := filepath.Glob(filepath.Join(dir, "*_manual_order.json"))
	require.NoError(t, err)
	require.Len(t, jsonFiles, 1)
	raw, err := os.ReadFile(jsonFiles[0])
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "admin@example.com", meta["send_to"])
}

func TestDevSenderRejectsInvalidParams(t *testing.T) {
	t.Parallel()

	err := email.NewDevSender("", nil).SendEmail(context.Background(), email.SendEmailParams{})
	require.ErrorIs(t, err, email.ErrInvalidParams)
}

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		c, err := email.NewPostmarkClient(email.Config{
			PostmarkServerToken: "server-token",
			SenderEmail:         "billing@example.com",
			SupportEmail:        "support@example.com",
		})
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewPostmarkClient(email.Config{SenderEmail: "a@example.com", SupportEmail: "b@example.com"})
		require.ErrorIs(t, err, email.ErrInvalidConfig)
	})

	t.Run("invalid sender", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewPostmarkClient(email.Config{
			PostmarkServerToken: "server-token",
			SenderEmail:         "nope",
			SupportEmail:        "support@example.com",
		})
		require.ErrorIs(t, err, email.ErrInvalidConfig)
	})
}
