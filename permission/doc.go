// Package permission resolves role hierarchies into effective
// permission sets and evaluates contextual guards for sensitive
// operations.
//
// The role table is static configuration validated once at startup: it
// must be acyclic, and a role's effective set always contains every
// permission of the roles it inherits from. The common check is a map
// lookup; callers opt into the guard pipeline (self-modification,
// time-window, IP-allowlist) by passing a Context.
package permission
