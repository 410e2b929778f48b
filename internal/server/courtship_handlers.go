package server

import (
	"courtside/internal/models"
	"courtside/internal/service"

	"github.com/gofiber/fiber/v2"
)

type courtshipRequestBody struct {
	UserID uint   `json:"user_id"`
	Type   string `json:"type"`
}

type answerRequestBody struct {
	Status string `json:"status"`
}

// SendCourtshipRequest handles POST /api/courtships/requests
func (s *Server) SendCourtshipRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var body courtshipRequestBody
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	if body.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	if _, err := s.courtships.SendRequest(ctx, userID, body.UserID, body.Type); err != nil {
		return models.RespondWithAppError(c, err)
	}

	view, err := s.users.Profile(ctx, userID, body.UserID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetCourtshipRequests handles GET /api/courtships/requests?type=&dir=
func (s *Server) GetCourtshipRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	list, err := s.courtships.ListRequests(ctx, userID, service.RequestFilter{
		Type: c.Query("type"),
		Dir:  c.Query("dir"),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	views, err := s.users.Profiles(ctx, userID, otherIDs(list))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"requests": views})
}

// AnswerCourtshipRequest handles PUT /api/courtships/requests/:userId
func (s *Server) AnswerCourtshipRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var body answerRequestBody
	if err := parseBody(c, &body); err != nil {
		return nil
	}

	switch body.Status {
	case "accept":
		_, err = s.courtships.Accept(ctx, userID, otherID)
	case "decline":
		err = s.courtships.Decline(ctx, userID, otherID)
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid status."))
	}
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CancelCourtshipRequest handles DELETE /api/courtships/requests/:userId
func (s *Server) CancelCourtshipRequest(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.courtships.CancelOutgoing(c.UserContext(), currentUserID(c), otherID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveCourtship handles DELETE /api/courtships/:userId
func (s *Server) RemoveCourtship(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.courtships.Sever(c.UserContext(), currentUserID(c), otherID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetUserCourtships handles GET /api/users/:id/courtships?type=friend|coach|student
func (s *Server) GetUserCourtships(c *fiber.Ctx) error {
	ctx := c.UserContext()
	viewer := currentUserID(c)
	userID, err := s.parseUserRef(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	list, err := s.courtships.ListCourtships(ctx, userID, c.Query("type"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	views, err := s.users.Profiles(ctx, viewer, otherIDs(list))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"courtships": views})
}

func otherIDs(list []service.Courtship) []uint {
	ids := make([]uint, 0, len(list))
	for _, ct := range list {
		ids = append(ids, ct.OtherID)
	}
	return ids
}
