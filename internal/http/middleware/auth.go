package middleware

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"helloapi/internal/security"
)

// PrincipalLocalKey is the key under which the authenticated *security.Principal is stored.
const PrincipalLocalKey = "principal"

// RequireRole authenticates the caller with HTTP Basic credentials against dir
// and admits only principals holding role.
//
// Missing or invalid credentials yield 401 with a WWW-Authenticate challenge for realm;
// a valid user without the role yields 403.
func RequireRole(dir *security.Directory, role, realm string) fiber.Handler {
	challenge := `Basic realm="` + realm + `"`

	return func(c *fiber.Ctx) error {
		username, password, ok := parseBasicAuth(c.Get(fiber.HeaderAuthorization))
		if !ok {
			c.Set(fiber.HeaderWWWAuthenticate, challenge)
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}

		p, ok := dir.Authenticate(username, password)
		if !ok {
			c.Set(fiber.HeaderWWWAuthenticate, challenge)
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		if !p.HasRole(role) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}

		c.Locals(PrincipalLocalKey, p)
		return c.Next()
	}
}

// PrincipalFromCtx returns the principal stored by RequireRole, or nil.
func PrincipalFromCtx(c *fiber.Ctx) *security.Principal {
	p, _ := c.Locals(PrincipalLocalKey).(*security.Principal)
	return p
}

func parseBasicAuth(header string) (username, password string, ok bool) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(raw), ":")
	if !ok || username == "" {
		return "", "", false
	}
	return username, password, true
}
