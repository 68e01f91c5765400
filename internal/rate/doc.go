// Package rate implements the in-process attempt budgets applied to
// login and MFA verification. Limits are advisory backoff, not a
// substitute for upstream DDoS protection.
package rate
