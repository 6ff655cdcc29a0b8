package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/quantfold/dealdesk/internal/store"
)

const minPasswordLength = 6

// UsersHandler serves the application user CRUD. Everything except reading
// your own record is admin-only.
type UsersHandler struct {
	Store *store.Store
}

func (h *UsersHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/role/:role", h.listByRole)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func requireAdmin(c echo.Context) error {
	if currentRole(c) != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}
	return nil
}

func (h *UsersHandler) list(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	users, err := h.Store.ListUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, UserListResponse{Users: users, Total: len(users)})
}

func (h *UsersHandler) listByRole(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	users, err := h.Store.ListUsersByRole(c.Request().Context(), c.Param("role"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, UserListResponse{Users: users, Total: len(users)})
}

// get allows admins to read anyone and users to read themselves.
func (h *UsersHandler) get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if currentRole(c) != "admin" && currentUserID(c) != id {
		return echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}
	user, err := h.Store.GetUserByID(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// Create user
//
//	@Summary	Create a user
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		CreateUserRequest	true	"User payload"
//	@Success	201		{object}	store.User
//	@Failure	400		{object}	HTTPError
//	@Failure	409		{object}	HTTPError
//	@Router		/api/users [post]
func (h *UsersHandler) create(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Name = strings.TrimSpace(req.Name)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Name == "" || req.LastName == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name, last_name and email are required")
	}
	if len(req.Password) < minPasswordLength {
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	user, err := h.Store.CreateUser(c.Request().Context(), req.Name, req.LastName, req.Email, string(hash), req.Role)
	if errors.Is(err, store.ErrEmailExists) {
		return echo.NewHTTPError(http.StatusConflict, "email already exists")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UsersHandler) update(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	params := store.UpdateUserParams{
		Name:     req.Name,
		LastName: req.LastName,
		Email:    req.Email,
		Role:     req.Role,
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return echo.NewHTTPError(http.StatusBadRequest, "password too short")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		hashed := string(hash)
		params.PasswordHash = &hashed
	}
	user, err := h.Store.UpdateUser(c.Request().Context(), id, params)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if errors.Is(err, store.ErrEmailExists) {
		return echo.NewHTTPError(http.StatusConflict, "email already exists")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// delete soft-deletes; the row stays for audit but disappears from queries.
func (h *UsersHandler) delete(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	user, err := h.Store.SoftDeleteUser(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}
