package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"userapi/internal/model"
	"userapi/internal/service"
)

// avatarURLExpiry is how long a presigned avatar URL stays valid.
const avatarURLExpiry = 15 * time.Minute

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CountUsers returns the number of registered users.
//
// @Summary Count users
// @Tags users
// @Produce json
// @Success 200 {object} model.UserCount
// @Failure 503 {object} errorPayload
// @Router /users/count [get]
func CountUsers(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := svc.CountUsers(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(model.UserCount{Count: n})
	}
}

// ListUsers returns one page of users with the total count.
//
// @Summary List users
// @Tags users
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "offset" default(0)
// @Success 200 {object} service.UserListResult
// @Router /users [get]
func ListUsers(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// CreateUser registers a user from a JSON body.
//
// @Summary Register user
// @Tags users
// @Accept json
// @Produce json
// @Param body body createUserRequest true "user"
// @Success 201 {object} model.User
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /users [post]
func CreateUser(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createUserRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		u, err := svc.Register(c.UserContext(), req.Email, req.Name)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	}
}

// GetUser returns a user by ID.
//
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "user id"
// @Success 200 {object} model.User
// @Failure 404 {object} errorPayload
// @Router /users/{id} [get]
func GetUser(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := userID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(u)
	}
}

// DeleteUser removes a user and their avatar.
//
// @Summary Delete user
// @Tags users
// @Param id path string true "user id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /users/{id} [delete]
func DeleteUser(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := userID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// UploadAvatar stores the multipart "file" field as the user's avatar.
//
// @Summary Upload avatar
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "user id"
// @Param file formData file true "image"
// @Success 200 {object} model.User
// @Failure 415 {object} errorPayload
// @Router /users/{id}/avatar [put]
func UploadAvatar(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := userID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		u, err := svc.UploadAvatar(c.UserContext(), id, f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(u)
	}
}

// AvatarRedirect redirects to a presigned download URL for the avatar.
//
// @Summary Get avatar
// @Tags users
// @Param id path string true "user id"
// @Success 302
// @Failure 404 {object} errorPayload
// @Router /users/{id}/avatar [get]
func AvatarRedirect(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := userID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		url, err := svc.AvatarURL(c.UserContext(), id, avatarURLExpiry)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Redirect(url, fiber.StatusFound)
	}
}

// Dashboard returns the landing page summary.
//
// @Summary Dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} model.Dashboard
// @Failure 503 {object} errorPayload
// @Router /dashboard [get]
func Dashboard(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := svc.Dashboard(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(d)
	}
}

func userID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
