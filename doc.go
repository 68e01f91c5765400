// Package authcore is the authorization and session core of the
// Harborline boat marketplace: token issuance, verification, and
// revocation; role and permission resolution with contextual guards;
// server-tracked session lifecycle; and TOTP multi-factor
// authentication.
//
// The core is transport-agnostic. The surrounding request layer calls
// [Core.VerifyBearerToken] on every protected route and
// [Core.CheckPermission] where a specific action is guarded; listing
// CRUD, billing, email, and the web UI are external collaborators.
//
// Construction goes through the builder:
//
//	core, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithCredentialStore(users).
//		WithAuditSink(sink).
//		Build()
//
// Without a Redis client the core runs on in-process stores, suitable
// for single-process deployments and tests. All shared mutable state
// (revocation list, session table) lives behind explicitly injected
// store interfaces; there are no process-wide singletons.
package authcore
