package middleware

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocalOnly keeps the intake on the device. Loopback callers always pass.
// When allowLAN is set, private-network callers may reach the lanPaths prefixes
// (the peer hand-off intake) and nothing else.
func LocalOnly(log *zap.Logger, allowLAN bool, lanPaths ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if allowed(c.IP(), c.Path(), allowLAN, lanPaths) {
			return c.Next()
		}
		log.Warn("🚫 [LOCAL_ONLY] rejected request", zap.String("ip", c.IP()), zap.String("path", c.Path()))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "intake only accepts local requests",
		})
	}
}

func allowed(remote, path string, allowLAN bool, lanPaths []string) bool {
	ip := net.ParseIP(remote)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	if !allowLAN || !ip.IsPrivate() {
		return false
	}
	for _, prefix := range lanPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
