// Package email sends transactional email through Postmark, with a DevSender
// for local runs and templ-rendered bodies in the templates subpackage.
//
// paygate only emails around manual payment processing: the administrator
// learns about a purchase request and the buyer gets a confirmation.
//
//	var sender email.EmailSender = email.NewDevSender(cfg.DevOutputDir, log)
//	if cfg.UsePostmark() {
//		sender, err = email.NewPostmarkClient(cfg)
//	}
package email
