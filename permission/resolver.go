package permission

import (
	"errors"
	"net/netip"
	"time"
)

// Denial reason codes. These are stable identifiers safe to expose in
// "forbidden" responses; they never carry other users' data.
const (
	ReasonUnknownRole       = "unknown_role"
	ReasonInsufficientRole  = "insufficient_role"
	ReasonSelfModification  = "self_modification"
	ReasonOutsideTimeWindow = "outside_time_window"
	ReasonIPNotAllowed      = "ip_not_allowed"
)

// ErrUnknownRole is returned by Resolve for roles absent from the table.
var ErrUnknownRole = errors.New("unknown role")

// Context carries the optional evaluation context for sensitive checks.
// A nil Context skips the guard pipeline entirely, keeping the common
// case a single map lookup.
type Context struct {
	// ResourceOwnerID is the user the action targets, when it targets one.
	ResourceOwnerID string
	// IP is the caller's address in textual form.
	IP string
	// Now overrides the evaluation time. Zero means time.Now.
	Now time.Time
}

// Decision is the result of a permission check.
type Decision struct {
	Allowed bool
	Reason  string
}

var allowed = Decision{Allowed: true}

func denied(reason string) Decision {
	return Decision{Reason: reason}
}

// Guard evaluates one contextual rule. A nil result means the guard
// passes; a non-nil result is the denial, and evaluation stops there.
type Guard func(principalID string, perm string, ctx *Context) *Decision

// GuardConfig declares which permissions the built-in guards cover.
type GuardConfig struct {
	// SelfGuarded lists self-escalation-capable permissions a principal
	// may never exercise against its own account.
	SelfGuarded []string
	// TimeWindows restricts permissions to a daily window.
	TimeWindows map[string]Window
	// IPAllowlists restricts permissions to caller addresses within the
	// given CIDR prefixes.
	IPAllowlists map[string][]string
}

// Window is a daily time window in a fixed location. Start and End are
// hours in [0,24); windows may wrap midnight.
type Window struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

func (w Window) contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	hour := t.In(loc).Hour()
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// Resolver owns the static role table and evaluates permission checks.
// The table is validated and memoized at construction; Resolve and
// Check are read-only afterwards and need no locking.
type Resolver struct {
	sets   map[Role]Set
	guards []Guard
}

// NewResolver validates the role definitions (cycles, unknown parents)
// and compiles the guard pipeline. Configuration errors are fatal here,
// never per-request.
func NewResolver(defs map[Role]Definition, guardCfg GuardConfig) (*Resolver, error) {
	if len(defs) == 0 {
		return nil, errors.New("empty role table")
	}
	sets, err := resolveAll(defs)
	if err != nil {
		return nil, err
	}

	guards, err := buildGuards(guardCfg)
	if err != nil {
		return nil, err
	}

	return &Resolver{sets: sets, guards: guards}, nil
}

// Resolve returns the effective permission set for the role.
func (r *Resolver) Resolve(role Role) (Set, error) {
	set, ok := r.sets[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	return set, nil
}

// Check evaluates the static role grant and then, when ctx is supplied,
// the guard pipeline in order, short-circuiting on the first denial.
func (r *Resolver) Check(role Role, principalID, perm string, ctx *Context) Decision {
	set, ok := r.sets[role]
	if !ok {
		return denied(ReasonUnknownRole)
	}
	if !set.Has(perm) {
		return denied(ReasonInsufficientRole)
	}
	if ctx == nil {
		return allowed
	}

	for _, guard := range r.guards {
		if d := guard(principalID, perm, ctx); d != nil {
			return *d
		}
	}
	return allowed
}

func buildGuards(cfg GuardConfig) ([]Guard, error) {
	var guards []Guard

	if len(cfg.SelfGuarded) > 0 {
		guarded := make(map[string]struct{}, len(cfg.SelfGuarded))
		for _, perm := range cfg.SelfGuarded {
			guarded[perm] = struct{}{}
		}
		guards = append(guards, func(principalID, perm string, ctx *Context) *Decision {
			if _, ok := guarded[perm]; !ok {
				return nil
			}
			if ctx.ResourceOwnerID != "" && ctx.ResourceOwnerID == principalID {
				d := denied(ReasonSelfModification)
				return &d
			}
			return nil
		})
	}

	if len(cfg.TimeWindows) > 0 {
		windows := make(map[string]Window, len(cfg.TimeWindows))
		for perm, w := range cfg.TimeWindows {
			if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 {
				return nil, errors.New("time window hours out of range")
			}
			windows[perm] = w
		}
		guards = append(guards, func(_ string, perm string, ctx *Context) *Decision {
			w, ok := windows[perm]
			if !ok {
				return nil
			}
			now := ctx.Now
			if now.IsZero() {
				now = time.Now()
			}
			if !w.contains(now) {
				d := denied(ReasonOutsideTimeWindow)
				return &d
			}
			return nil
		})
	}

	if len(cfg.IPAllowlists) > 0 {
		allowlists := make(map[string][]netip.Prefix, len(cfg.IPAllowlists))
		for perm, cidrs := range cfg.IPAllowlists {
			prefixes := make([]netip.Prefix, 0, len(cidrs))
			for _, cidr := range cidrs {
				prefix, err := netip.ParsePrefix(cidr)
				if err != nil {
					return nil, errors.New("invalid ip allowlist prefix: " + cidr)
				}
				prefixes = append(prefixes, prefix)
			}
			allowlists[perm] = prefixes
		}
		guards = append(guards, func(_ string, perm string, ctx *Context) *Decision {
			prefixes, ok := allowlists[perm]
			if !ok {
				return nil
			}
			addr, err := netip.ParseAddr(ctx.IP)
			if err == nil {
				for _, prefix := range prefixes {
					if prefix.Contains(addr) {
						return nil
					}
				}
			}
			// Unparseable callers fail closed.
			d := denied(ReasonIPNotAllowed)
			return &d
		})
	}

	return guards, nil
}
