package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"usersvc/internal/model"
	"usersvc/internal/service"
)

// UserHandler serves the /users endpoints.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a user handler.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// AvatarURLResponse carries a time-limited avatar link.
type AvatarURLResponse struct {
	URL string `json:"url"`
}

// Create godoc
// @Summary Create a new user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateUserRequest true "User payload"
// @Success 201 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req model.CreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

// FindAll godoc
// @Summary Get all users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) FindAll(c echo.Context) error {
	users, err := h.svc.FindAll(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// GetProfile godoc
// @Summary Get current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(c echo.Context) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	user, err := h.svc.GetUserProfile(c.Request().Context(), identity)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile godoc
// @Summary Update current user profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ProfileUpdateRequest true "Fields to change"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/profile [patch]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	var req model.ProfileUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.svc.UpdateUserProfile(c.Request().Context(), identity, req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// RecordLogin godoc
// @Summary Record a login for the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/profile/login [post]
func (h *UserHandler) RecordLogin(c echo.Context) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	user, err := h.svc.UpdateLastLogin(c.Request().Context(), identity)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UploadAvatar godoc
// @Summary Upload an avatar for the current user
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Avatar image (jpeg, png, gif or webp, up to 5 MiB)"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /users/profile/avatar [post]
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("file is required", "INVALID_FILE")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest("unreadable file", "INVALID_FILE")
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, service.MaxAvatarSize+1))
	if err != nil {
		return badRequest("unreadable file", "INVALID_FILE")
	}

	user, err := h.svc.UploadAvatar(c.Request().Context(), identity, service.AvatarFile{
		Body:        body,
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(body),
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// AvatarURL godoc
// @Summary Get a signed link to the current user's avatar
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AvatarURLResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/profile/avatar/url [get]
func (h *UserHandler) AvatarURL(c echo.Context) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	url, err := h.svc.AvatarURL(c.Request().Context(), identity)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, AvatarURLResponse{URL: url})
}

// FindOne godoc
// @Summary Get user by ID
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) FindOne(c echo.Context) error {
	user, err := h.svc.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Update godoc
// @Summary Update user by ID
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body model.UpdateUserRequest true "Fields to change"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [patch]
func (h *UserHandler) Update(c echo.Context) error {
	var req model.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.svc.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Remove godoc
// @Summary Delete user by ID
// @Tags users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) Remove(c echo.Context) error {
	if err := h.svc.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Deactivate godoc
// @Summary Deactivate user by Clerk ID
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param clerkId path string true "Clerk user ID"
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{clerkId}/deactivate [post]
func (h *UserHandler) Deactivate(c echo.Context) error {
	user, err := h.svc.DeactivateUser(c.Request().Context(), c.Param("clerkId"))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Activate godoc
// @Summary Activate user by Clerk ID
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param clerkId path string true "Clerk user ID"
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{clerkId}/activate [post]
func (h *UserHandler) Activate(c echo.Context) error {
	user, err := h.svc.ActivateUser(c.Request().Context(), c.Param("clerkId"))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}
