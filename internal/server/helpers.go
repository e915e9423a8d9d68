package server

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
	"buffonomics/internal/session"
)

const (
	defaultSearchLimit     = 10
	defaultHighlightsLimit = 6
	maxLimit               = 100
)

// wantsJSON reports whether the client expects a JSON response rather than a page
// or redirect.
func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api") {
		return true
	}
	if c.Is("json") {
		return true
	}
	if strings.EqualFold(c.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}

// parseLimit reads the limit query parameter, falling back to def when it is
// missing or out of range.
func parseLimit(c *fiber.Ctx, def int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// errorCode extracts the client-facing code from err.
func errorCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeServer
}

// redirectWithError sends browsers back to path with ?error=<code>.
func redirectWithError(c *fiber.Ctx, path string, err error) error {
	return c.Redirect(path+"?error="+url.QueryEscape(errorCode(err)), fiber.StatusFound)
}

// page serves a static template from the templates directory.
func (s *Server) page(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.render(c, name)
	}
}

func (s *Server) render(c *fiber.Ctx, name string) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.SendFile(filepath.Join(s.config.TemplatesDir, name))
}

// NotFound answers unknown routes: API clients get JSON, browsers the login page.
func (s *Server) NotFound(c *fiber.Ctx) error {
	if wantsJSON(c) {
		return models.RespondWithError(c, fiber.StatusNotFound, &models.AppError{
			Code:    models.CodeNotFound,
			Message: "Route not found",
			Status:  fiber.StatusNotFound,
		})
	}
	c.Status(fiber.StatusNotFound)
	if err := c.SendFile(filepath.Join(s.config.TemplatesDir, "login.html")); err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Not Found")
	}
	return nil
}

func (s *Server) setSessionCookie(c *fiber.Ctx, sess session.Session) error {
	value, err := s.codec.Encode(sess)
	if err != nil {
		return models.NewInternalError(err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     s.config.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.config.SessionTTL / time.Second),
		Expires:  sess.ExpiresAt,
		Secure:   s.config.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   s.config.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// currentUser returns the username resolved by loadSession.
func currentUser(c *fiber.Ctx) (string, bool) {
	user, ok := c.Locals(middleware.LocalUsername).(string)
	return user, ok && user != ""
}
