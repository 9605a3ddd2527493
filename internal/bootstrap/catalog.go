package bootstrap

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloven/rbac-admin/internal/rbac"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog describes the roles, resources, actions and admin account to seed.
type Catalog struct {
	Roles     []RoleEntry  `yaml:"roles"`
	Resources []NamedEntry `yaml:"resources"`
	Actions   []NamedEntry `yaml:"actions"`
	Admin     AdminEntry   `yaml:"admin"`
}

// RoleEntry is a role with its grant patterns.
type RoleEntry struct {
	Name        rbac.RoleName `yaml:"name"`
	Description string        `yaml:"description"`
	Grants      []string      `yaml:"grants"`
}

// NamedEntry is a resource or action.
type NamedEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// AdminEntry is the bootstrap administrator. The password is supplied at run time.
type AdminEntry struct {
	FullName string `yaml:"fullName"`
	Email    string `yaml:"email"`
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("bootstrap: parse catalog: %w", err)
	}
	for _, r := range c.Roles {
		if !r.Name.Valid() {
			return Catalog{}, fmt.Errorf("bootstrap: unknown role %q", r.Name)
		}
		for _, g := range r.Grants {
			if _, _, err := splitGrant(g); err != nil {
				return Catalog{}, err
			}
		}
	}
	return c, nil
}

// Matches reports whether one of the role's grant patterns covers p.
func (r RoleEntry) Matches(p rbac.Permission) bool {
	for _, g := range r.Grants {
		res, act, _ := splitGrant(g)
		if (res == "*" || res == p.Resource.Name) && (act == "*" || act == p.Action.Name) {
			return true
		}
	}
	return false
}

func splitGrant(g string) (string, string, error) {
	res, act, ok := strings.Cut(g, ":")
	if !ok || res == "" || act == "" {
		return "", "", fmt.Errorf("bootstrap: malformed grant %q", g)
	}
	return res, act, nil
}
