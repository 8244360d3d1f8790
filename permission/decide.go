package permission

// Reason explains a [Decision].
type Reason uint8

const (
	// ReasonDenied is the zero value: nothing allowed the request.
	ReasonDenied Reason = iota
	ReasonAnonymous
	ReasonBootstrap
	ReasonGranted
	ReasonUnauthenticated
	ReasonNotGranted
)

func (r Reason) String() string {
	switch r {
	case ReasonAnonymous:
		return "anonymous"
	case ReasonBootstrap:
		return "bootstrap"
	case ReasonGranted:
		return "granted"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonNotGranted:
		return "not_granted"
	default:
		return "denied"
	}
}

// Request is everything the decision needs, resolved ahead of time.
type Request struct {
	// Anonymous marks operations open to everyone.
	Anonymous bool
	// Bootstrap is true when no principals exist yet.
	Bootstrap bool
	// FirstUserOperation marks the create-first-user operation.
	FirstUserOperation bool
	// Authenticated is true when a principal was resolved for the request.
	Authenticated bool
	// Path is the requested resource path.
	Path string
	// Roles are the principal's role records with their grants.
	Roles []Role
}

// Decision is the outcome of [Decide]. The zero value denies.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Decide evaluates req without side effects.
func Decide(req Request) Decision {
	if req.Anonymous {
		return Decision{Allowed: true, Reason: ReasonAnonymous}
	}
	if req.Bootstrap && req.FirstUserOperation {
		return Decision{Allowed: true, Reason: ReasonBootstrap}
	}
	if !req.Authenticated {
		return Decision{Reason: ReasonUnauthenticated}
	}
	for _, role := range req.Roles {
		if role.Grants(req.Path) {
			return Decision{Allowed: true, Reason: ReasonGranted}
		}
	}
	return Decision{Reason: ReasonNotGranted}
}
