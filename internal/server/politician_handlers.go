package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"buffonomics/internal/models"
)

type followRequest struct {
	Politician string `json:"politician" form:"politician"`
	Name       string `json:"name" form:"name"`
}

// GetPolitician looks a politician up by name; key names the payload field.
func (s *Server) GetPolitician(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		profile, err := s.politicianService.Lookup(c.UserContext(), c.Query("name"), c.QueryBool("fresh", false))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"ok": true,
			key:  profile,
		})
	}
}

func (s *Server) SearchPoliticians(c *fiber.Ctx) error {
	items, err := s.politicianService.Search(c.UserContext(), c.Query("q"), parseLimit(c, defaultSearchLimit))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "items": items})
}

func (s *Server) GetHighlights(c *fiber.Ctx) error {
	items, err := s.politicianService.Highlights(c.UserContext(), parseLimit(c, defaultHighlightsLimit))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "items": items})
}

func (s *Server) GetFollows(c *fiber.Ctx) error {
	username, _ := currentUser(c)
	items, err := s.followService.List(c.UserContext(), username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "items": items})
}

func (s *Server) FollowPolitician(c *fiber.Ctx) error {
	var req followRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewMissingError("politician")
	}
	name := req.Politician
	if strings.TrimSpace(name) == "" {
		name = req.Name
	}

	username, _ := currentUser(c)
	item, err := s.followService.Follow(c.UserContext(), username, name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "item": item})
}

func (s *Server) UnfollowPolitician(c *fiber.Ctx) error {
	username, _ := currentUser(c)
	if err := s.followService.Unfollow(c.UserContext(), username, c.Query("politician")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) GetMovers(c *fiber.Ctx) error {
	items, err := s.marketService.Movers(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "items": items})
}
