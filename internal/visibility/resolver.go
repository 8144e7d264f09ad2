package visibility

import (
	"errors"
	"fmt"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrManagerCycle rejects a manager assignment that would make a user part
// of their own reporting chain. Detected at edit time; the read path never
// has to tolerate cycles.
var ErrManagerCycle = errors.New("manager assignment would introduce a cycle")

// Resolver computes the set of users a caller may see deals for
type Resolver struct {
	logger *logrus.Logger
}

// NewResolver creates a visibility resolver
func NewResolver(logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{logger: logger}
}

// Input carries the hierarchy data one resolution needs
type Input struct {
	Caller models.User
	Org    models.Organization

	// Orgs is the known organization universe, used for the descendant
	// closure in the full-analytics admin case.
	Orgs []models.Organization

	// Users across the caller's org (and child orgs for admins)
	Users []models.User

	// Explicit manager-to-user visibility grants
	Edges []models.VisibilityEdge
}

// Resolve returns the caller's visible user set keyed by user id.
//
// REP callers always see exactly themselves. An ADMIN of an org with
// full analytics access sees every active user in the org and in every
// descendant org. Anyone else sees the transitive closure of the manager
// chain rooted at themselves plus any explicit visibility grants - or the
// whole org when their see-all flag is set. An empty result means the
// caller's deal queries must return nothing: visibility fails closed.
func (r *Resolver) Resolve(in Input) map[string]models.User {
	scope := make(map[string]models.User)

	switch {
	case in.Caller.Role == models.RoleRep:
		scope[in.Caller.ID] = in.Caller

	case in.Caller.Role == models.RoleAdmin && in.Org.FullAnalyticsAccess:
		orgs := descendantOrgs(in.Orgs, in.Org.ID)
		for _, u := range in.Users {
			if u.Active && orgs[u.OrgID] {
				scope[u.ID] = u
			}
		}

	case in.Caller.SeeAllVisibility:
		// Explicit edges are irrelevant for this manager: the flag grants
		// the entire organization.
		for _, u := range in.Users {
			if u.Active && u.OrgID == in.Caller.OrgID {
				scope[u.ID] = u
			}
		}

	default:
		r.managerClosure(in, scope)
		for _, e := range in.Edges {
			if e.ManagerUserID != in.Caller.ID {
				continue
			}
			for _, u := range in.Users {
				if u.ID == e.VisibleUserID && u.Active && u.OrgID == in.Caller.OrgID {
					scope[u.ID] = u
				}
			}
		}
	}

	r.logger.WithFields(logrus.Fields{
		"caller": in.Caller.ID,
		"role":   in.Caller.Role,
		"scope":  len(scope),
	}).Debug("Visibility scope resolved")

	return scope
}

// managerClosure adds self plus every active same-org user whose manager
// chain eventually points at the caller. Traversal is visited-set guarded
// so a corrupt cycle cannot loop it, even though cycles are rejected at
// write time.
func (r *Resolver) managerClosure(in Input, scope map[string]models.User) {
	reports := make(map[string][]models.User)
	for _, u := range in.Users {
		if u.ManagerUserID == nil {
			continue
		}
		reports[*u.ManagerUserID] = append(reports[*u.ManagerUserID], u)
	}

	visited := map[string]bool{in.Caller.ID: true}
	if in.Caller.Active && in.Caller.OrgID == in.Org.ID {
		scope[in.Caller.ID] = in.Caller
	}

	queue := []string{in.Caller.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, u := range reports[current] {
			if visited[u.ID] {
				continue
			}
			visited[u.ID] = true
			if u.Active && u.OrgID == in.Caller.OrgID {
				scope[u.ID] = u
			}
			queue = append(queue, u.ID)
		}
	}
}

// descendantOrgs computes the full descendant closure of root over the
// parent_org_id tree, root included.
func descendantOrgs(orgs []models.Organization, rootID string) map[string]bool {
	children := make(map[string][]string)
	for _, o := range orgs {
		if o.ParentOrgID == nil {
			continue
		}
		children[*o.ParentOrgID] = append(children[*o.ParentOrgID], o.ID)
	}

	closure := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if closure[child] {
				continue
			}
			closure[child] = true
			queue = append(queue, child)
		}
	}
	return closure
}

// CheckManagerAssignment rejects a manager edit that would introduce a
// cycle in the manager graph. Called by the admin service before the write
// lands.
func CheckManagerAssignment(users []models.User, userID, newManagerID string) error {
	if userID == newManagerID {
		return fmt.Errorf("%w: user %s cannot manage themselves", ErrManagerCycle, userID)
	}

	managers := make(map[string]string)
	for _, u := range users {
		if u.ManagerUserID != nil {
			managers[u.ID] = *u.ManagerUserID
		}
	}

	// Walk up from the proposed manager; reaching the user means the edit
	// would close a loop.
	visited := make(map[string]bool)
	current := newManagerID
	for current != "" {
		if current == userID {
			return fmt.Errorf("%w: %s is already in %s's reporting chain", ErrManagerCycle, userID, newManagerID)
		}
		if visited[current] {
			// Pre-existing corruption above the proposed manager.
			return fmt.Errorf("%w: existing cycle detected at %s", ErrManagerCycle, current)
		}
		visited[current] = true
		current = managers[current]
	}
	return nil
}
