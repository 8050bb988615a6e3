// Package security holds the in-memory user directory consulted by the
// Basic-auth middleware.
package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"helloapi/internal/config"
)

// rolePrefix is accepted on input and stripped, so "ROLE_USER" and "USER" name the same role.
const rolePrefix = "ROLE_"

var ErrNoUsers = errors.New("security enabled but no users configured")

// dummyPassword is compared against when the username is unknown.
var dummyPassword = []byte("helloapi-no-such-user")

// User is a directory entry.
type User struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// Principal is an authenticated caller.
type Principal struct {
	Username string
	Roles    []string
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	role = normalizeRole(role)
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Directory is an immutable set of users keyed by username. It is safe for concurrent use.
type Directory struct {
	users map[string]User
}

// NewDirectory validates users and builds a Directory.
func NewDirectory(users ...User) (*Directory, error) {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("user with empty username")
		}
		if _, dup := d.users[u.Username]; dup {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}
		roles := make([]string, 0, len(u.Roles))
		for _, r := range u.Roles {
			if r = normalizeRole(r); r != "" {
				roles = append(roles, r)
			}
		}
		u.Roles = roles
		d.users[u.Username] = u
	}
	return d, nil
}

// Len returns the number of users.
func (d *Directory) Len() int {
	return len(d.users)
}

// Authenticate checks the credentials and returns the matching principal.
func (d *Directory) Authenticate(username, password string) (*Principal, bool) {
	u, ok := d.users[username]
	if !ok {
		// keep timing independent of whether the user exists
		subtle.ConstantTimeCompare(dummyPassword, []byte(password))
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return nil, false
	}
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return &Principal{Username: u.Username, Roles: roles}, true
}

// ParseUsers parses "name:password:ROLE1|ROLE2" entries separated by commas.
func ParseUsers(list string) ([]User, error) {
	var users []User
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid user entry %q: want name:password[:roles]", entry)
		}
		u := User{Username: parts[0], Password: parts[1]}
		if len(parts) == 3 && parts[2] != "" {
			u.Roles = strings.Split(parts[2], "|")
		}
		users = append(users, u)
	}
	return users, nil
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// LoadFile reads users from a YAML document of the form `users: [{username, password, roles}]`.
func LoadFile(path string) ([]User, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("security: read file %s: %w", path, err)
	}
	var f usersFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("security: parse yaml: %w", err)
	}
	return f.Users, nil
}

// FromConfig builds the directory described by cfg. A disabled config yields an empty directory.
func FromConfig(cfg config.SecurityConfig) (*Directory, error) {
	if !cfg.Enabled {
		return NewDirectory()
	}

	var (
		users []User
		err   error
	)
	if cfg.UsersFile != "" {
		users, err = LoadFile(cfg.UsersFile)
	} else {
		users, err = ParseUsers(cfg.Users)
	}
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNoUsers
	}
	return NewDirectory(users...)
}

func normalizeRole(r string) string {
	r = strings.ToUpper(strings.TrimSpace(r))
	return strings.TrimPrefix(r, rolePrefix)
}
