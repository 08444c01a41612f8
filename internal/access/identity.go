package access

import (
	"github.com/recora/recora/internal/resource"
)

// StaticIdentity is a plain-data Identity, used by the CLI and tests.
// Production identities come from the caller's authentication layer.
type StaticIdentity struct {
	Local        bool
	Organization string
	RoleCodings  []resource.Coding
}

func (i StaticIdentity) IsLocal() bool                  { return i.Local }
func (i StaticIdentity) OrganizationIdentifier() string { return i.Organization }
func (i StaticIdentity) Roles() []resource.Coding       { return i.RoleCodings }

// LocalService is the identity the repository itself acts as for
// operator commands: local, organization-bound, no practitioner roles.
func LocalService(organization string) StaticIdentity {
	return StaticIdentity{Local: true, Organization: organization}
}

// StaticAffiliations resolves parent organizations from a fixed
// member -> parents table.
type StaticAffiliations map[string][]string

func (a StaticAffiliations) ParentsOf(organizationIdentifier string) []string {
	return a[organizationIdentifier]
}
