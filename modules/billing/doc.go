// Package billing mounts paygate's HTTP surface: provider webhooks,
// checkout and portal links, the public plan catalog, the caller's
// entitlement, and manual checkout notifications.
//
// Webhook routes authenticate by vendor signature. The remaining routes read
// a Clerk session through identity.Authenticate; portal, me and manual
// checkout require one.
package billing
