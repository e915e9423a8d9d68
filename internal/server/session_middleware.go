package server

import (
	"github.com/gofiber/fiber/v2"

	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
)

const localSessionToken = "sessionToken"

// loadSession resolves the session cookie once per request. A missing, tampered
// or expired cookie leaves the request unauthenticated.
func (s *Server) loadSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := s.codec.Decode(c.Cookies(s.config.CookieName))
		if !ok {
			return c.Next()
		}
		c.Locals(localSessionToken, token)

		username, ok := s.authService.Authenticate(c.UserContext(), token)
		if ok {
			c.Locals(middleware.LocalUsername, username)
		}
		return c.Next()
	}
}

// PageRequired redirects unauthenticated browsers to the login page.
func (s *Server) PageRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := currentUser(c); ok {
			return c.Next()
		}
		if wantsJSON(c) {
			return unauthenticated(c)
		}
		return c.Redirect("/login", fiber.StatusFound)
	}
}

// AuthRequired rejects unauthenticated API calls with 401.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := currentUser(c); ok {
			return c.Next()
		}
		return unauthenticated(c)
	}
}

func unauthenticated(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized,
		models.NewUnauthorizedError(models.CodeUnauthenticated, "Authentication required"))
}
