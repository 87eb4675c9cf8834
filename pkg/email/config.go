package email

// Config holds outbound email settings. Without a Postmark server token the
// application falls back to DevSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"billing@localhost"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@localhost"`
	AdminEmail           string `env:"ADMIN_EMAIL"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR"`
}

// UsePostmark reports whether a Postmark server token is configured.
func (c Config) UsePostmark() bool { return c.PostmarkServerToken != "" }
