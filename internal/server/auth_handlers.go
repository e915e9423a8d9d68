package server

import (
	"github.com/gofiber/fiber/v2"

	"buffonomics/internal/models"
	"buffonomics/internal/service"
)

type loginRequest struct {
	Username   string `json:"username" form:"username"`
	Email      string `json:"email" form:"email"`
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
}

func (r loginRequest) identifier() string {
	switch {
	case r.Username != "":
		return r.Username
	case r.Email != "":
		return r.Email
	default:
		return r.Identifier
	}
}

type registerRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Username string `json:"username" form:"username"`
}

type userResponse struct {
	ID       uint   `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Root sends visitors to the home page or the login page.
func (s *Server) Root(c *fiber.Ctx) error {
	if _, ok := currentUser(c); ok {
		return c.Redirect("/home", fiber.StatusFound)
	}
	return c.Redirect("/login", fiber.StatusFound)
}

// LoginPage serves the login form unless the visitor is already signed in.
func (s *Server) LoginPage(c *fiber.Ctx) error {
	if _, ok := currentUser(c); ok {
		return c.Redirect("/home", fiber.StatusFound)
	}
	return s.render(c, "login.html")
}

// Login verifies credentials and sets the session cookie. Form posts are
// redirected; JSON callers get the user.
func (s *Server) Login(c *fiber.Ctx) error {
	asJSON := wantsJSON(c)

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		err = models.NewValidationError(models.CodeMissing, "Username and password are required")
		if asJSON {
			return err
		}
		return redirectWithError(c, "/login", err)
	}

	sess, principal, err := s.authService.Login(c.UserContext(), req.identifier(), req.Password)
	if err != nil {
		if asJSON {
			return err
		}
		return redirectWithError(c, "/login", err)
	}
	if err := s.setSessionCookie(c, sess); err != nil {
		return err
	}

	if asJSON {
		return c.JSON(fiber.Map{
			"ok":   true,
			"user": userResponse{Username: principal.Username, Email: principal.Email},
		})
	}
	return c.Redirect("/home", fiber.StatusFound)
}

// Logout revokes the session and clears the cookie.
func (s *Server) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals(localSessionToken).(string)
	if err := s.authService.Logout(c.UserContext(), token); err != nil {
		return err
	}
	s.clearSessionCookie(c)

	if wantsJSON(c) {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Redirect("/login", fiber.StatusFound)
}

// Register creates an account.
func (s *Server) Register(c *fiber.Ctx) error {
	asJSON := wantsJSON(c)

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		err = models.NewValidationError(models.CodeMissing, "Email and password are required")
		if asJSON {
			return err
		}
		return redirectWithError(c, "/register", err)
	}

	user, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		if asJSON {
			return err
		}
		return redirectWithError(c, "/register", err)
	}

	if asJSON {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"ok":   true,
			"user": userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		})
	}
	return c.Redirect("/login?registered=1", fiber.StatusFound)
}

// GetSession reports the signed-in user.
func (s *Server) GetSession(c *fiber.Ctx) error {
	username, ok := currentUser(c)
	if !ok {
		return unauthenticated(c)
	}
	return c.JSON(fiber.Map{
		"ok":   true,
		"user": userResponse{Username: username},
	})
}
