package httpapi

import (
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) login(c *fiber.Ctx) error {
	var in loginIn
	if err := s.bind(c, &in); err != nil {
		return err
	}

	pair, err := s.svc.Users.Login(c.UserContext(), in.Username, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(toTokenOut(pair))
}

// refresh accepts the token as a query parameter or in the body.
func (s *Server) refresh(c *fiber.Ctx) error {
	token := c.Query("refresh_token")
	if token == "" && len(c.Body()) > 0 {
		var in refreshIn
		if err := c.BodyParser(&in); err != nil {
			return badRequest("malformed request body: %v", err)
		}
		token = in.RefreshToken
	}
	if token == "" {
		return badRequest("refresh_token is required")
	}

	pair, err := s.svc.Users.RefreshToken(c.UserContext(), token)
	if err != nil {
		return err
	}
	return c.JSON(toTokenOut(pair))
}

func (s *Server) register(c *fiber.Ctx) error {
	var in registerIn
	if err := s.bind(c, &in); err != nil {
		return err
	}

	u, err := s.svc.Users.Register(c.UserContext(), caller(c), in.toModel())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toUserOut(u))
}

func (s *Server) registerPublic(c *fiber.Ctx) error {
	var in registerIn
	if err := s.bind(c, &in); err != nil {
		return err
	}

	u, err := s.svc.Users.RegisterPublic(c.UserContext(), in.toModel())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toUserOut(u))
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	q := pageQuery{Limit: models.DefaultPageLimit}
	if err := c.QueryParser(&q); err != nil {
		return badRequest("%v", err)
	}

	p, err := s.svc.Users.List(c.UserContext(), caller(c), models.UserFilter{Username: q.Username}, models.Page{Skip: q.Skip, Limit: q.Limit})
	if err != nil {
		return err
	}

	out := userListOut{Users: make([]userOut, 0, len(p.Users)), Skip: p.Skip, PageSize: p.Limit, Total: p.Total}
	for _, u := range p.Users {
		out.Users = append(out.Users, toUserOut(u))
	}
	return c.JSON(out)
}

func (s *Server) me(c *fiber.Ctx) error {
	u, err := s.svc.Users.Me(c.UserContext(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(toUserOut(u))
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in userUpdateIn
	if err := s.bind(c, &in); err != nil {
		return err
	}

	u, err := s.svc.Users.Update(c.UserContext(), caller(c), id, in.toModel())
	if err != nil {
		return err
	}
	return c.JSON(toUserOut(u))
}

func (s *Server) deleteUser(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.svc.Users.Delete(c.UserContext(), caller(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) uploadProfilePicture(c *fiber.Ctx) error {
	up, err := upload(c)
	if err != nil {
		return err
	}

	u, err := s.svc.Users.SetProfilePicture(c.UserContext(), caller(c), up)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profile_picture": u.ProfilePicture})
}
