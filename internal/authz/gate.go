package authz

// Decision is the outcome of evaluating a Gate against a subject snapshot.
// The zero value denies.
type Decision int

const (
	DecisionForbidden Decision = iota
	DecisionLoading
	DecisionLogin
	DecisionNotFound
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionLoading:
		return "loading"
	case DecisionLogin:
		return "login"
	case DecisionNotFound:
		return "not_found"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Gate configures one access decision. All check fields are optional; a gate
// with no checks set is a pure auth pass-through that always grants. When
// several checks are set at once, exactly one is evaluated, in fixed
// priority: Permission, then Role, then AnyRole, then AllRoles. The priority
// is deliberate, not a conflict error.
type Gate struct {
	Role       Role
	AnyRole    []Role
	AllRoles   []Role
	Permission Permission

	// RequireAuth routes absent users to the login outcome instead of a
	// plain denial.
	RequireAuth bool

	// Use404Fallback denies with the not-found outcome so protected routes
	// do not reveal their existence.
	Use404Fallback bool

	// ShowLoadingState defers the decision while the subject snapshot is
	// still being resolved.
	ShowLoadingState bool
}

// Decide evaluates the gate for the given subject snapshot. loading reports
// whether the snapshot is still being fetched. The evaluation order is part
// of the contract:
//
//  1. loading and ShowLoadingState -> DecisionLoading
//  2. RequireAuth and no subject   -> DecisionLogin
//  3. checks pass (or none set)    -> DecisionAllow
//  4. Use404Fallback               -> DecisionNotFound
//  5. otherwise                    -> DecisionForbidden
//
// Decide never returns an error: missing data and unknown permission names
// degrade to a denial.
func Decide(u *Subject, loading bool, g Gate) Decision {
	if loading && g.ShowLoadingState {
		return DecisionLoading
	}
	if g.RequireAuth && u == nil {
		return DecisionLogin
	}
	if g.hasAccess(u) {
		return DecisionAllow
	}
	if g.Use404Fallback {
		return DecisionNotFound
	}
	return DecisionForbidden
}

func (g Gate) hasAccess(u *Subject) bool {
	switch {
	case g.Permission != "":
		return HasPermission(u, g.Permission)
	case g.Role != "":
		return HasRole(u, g.Role)
	case len(g.AnyRole) > 0:
		return HasAnyRole(u, g.AnyRole)
	case len(g.AllRoles) > 0:
		return HasAllRoles(u, g.AllRoles)
	default:
		return true
	}
}
