package server

import (
	"courtside/internal/models"
	"courtside/internal/service"

	"github.com/gofiber/fiber/v2"
)

type bucketBody struct {
	Name string `json:"name"`
}

type commentBody struct {
	UploadID uint   `json:"upload_id"`
	Text     string `json:"text"`
}

// CreateBucket handles POST /api/buckets
func (s *Server) CreateBucket(c *fiber.Ctx) error {
	var body bucketBody
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	view, err := s.buckets.Create(c.UserContext(), currentUserID(c), body.Name)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetUserBuckets handles GET /api/users/:id/buckets
func (s *Server) GetUserBuckets(c *fiber.Ctx) error {
	ownerID, err := s.parseUserRef(c, "id")
	if err != nil {
		return nil
	}
	views, err := s.buckets.ListForOwner(c.UserContext(), currentUserID(c), ownerID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"buckets": views})
}

// RenameBucket handles PUT /api/buckets/:id
func (s *Server) RenameBucket(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var body bucketBody
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	view, err := s.buckets.Rename(c.UserContext(), currentUserID(c), id, body.Name)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// DeleteBucket handles DELETE /api/buckets/:id
func (s *Server) DeleteBucket(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.buckets.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateUpload handles POST /api/uploads
func (s *Server) CreateUpload(c *fiber.Ctx) error {
	var input service.CreateUploadInput
	if err := parseBody(c, &input); err != nil {
		return nil
	}
	view, err := s.uploads.Create(c.UserContext(), currentUserID(c), input)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetUpload handles GET /api/uploads/:id
func (s *Server) GetUpload(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	view, err := s.uploads.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// GetUserUploads handles GET /api/users/:id/uploads?bucket=
func (s *Server) GetUserUploads(c *fiber.Ctx) error {
	ownerID, err := s.parseUserRef(c, "id")
	if err != nil {
		return nil
	}
	bucketID, err := parseOptionalQueryID(c, "bucket")
	if err != nil {
		return nil
	}
	views, err := s.uploads.ListByOwner(c.UserContext(), currentUserID(c), ownerID, bucketID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"uploads": views})
}

// UpdateUpload handles PUT /api/uploads/:id
func (s *Server) UpdateUpload(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var input service.UpdateUploadInput
	if err := parseBody(c, &input); err != nil {
		return nil
	}
	view, err := s.uploads.Update(c.UserContext(), currentUserID(c), id, input)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// DeleteUpload handles DELETE /api/uploads/:id
func (s *Server) DeleteUpload(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.uploads.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ConvertUpload handles POST /api/uploads/:id/convert
func (s *Server) ConvertUpload(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	view, err := s.uploads.StartConvert(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(view)
}

// DownloadUpload handles GET /api/uploads/:id/download
func (s *Server) DownloadUpload(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	url, err := s.uploads.DownloadURL(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// CreateComment handles POST /api/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var body commentBody
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	if body.UploadID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid upload ID"))
	}
	comment, err := s.comments.Create(c.UserContext(), currentUserID(c), body.UploadID, body.Text)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/comments?upload=
func (s *Server) GetComments(c *fiber.Ctx) error {
	uploadID, err := parseOptionalQueryID(c, "upload")
	if err != nil {
		return nil
	}
	if uploadID == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Missing upload"))
	}
	comments, err := s.comments.ListForUpload(c.UserContext(), currentUserID(c), *uploadID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// GetUserComments handles GET /api/users/:id/comments
func (s *Server) GetUserComments(c *fiber.Ctx) error {
	authorID, err := s.parseUserRef(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.comments.ListByAuthor(c.UserContext(), currentUserID(c), authorID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.comments.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
