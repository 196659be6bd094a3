package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/instastick/storefront-auth/internal/api/middleware"
	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
)

type UserHandler struct {
	users   ports.UserService
	cookies CookieSettings
}

func NewUserHandler(users ports.UserService, cookies CookieSettings) *UserHandler {
	return &UserHandler{users: users, cookies: cookies}
}

type deleteMeRequest struct {
	Password string `json:"password"`
}

type updateMeRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
}

type addressRequest struct {
	AddressLine1 string  `json:"addressLine1"`
	AddressLine2 *string `json:"addressLine2"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Pincode      string  `json:"pincode"`
	Phone        string  `json:"phone"`
	IsDefault    *bool   `json:"isDefault"`
}

func (r addressRequest) input() ports.AddressInput {
	return ports.AddressInput{
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		City:         r.City,
		State:        r.State,
		Pincode:      r.Pincode,
		Phone:        r.Phone,
		IsDefault:    r.IsDefault,
	}
}

type listUsersQuery struct {
	Page  int `query:"page"  validate:"gte=0,lte=100000"`
	Limit int `query:"limit" validate:"gte=0"`
}

type userIDParam struct {
	ID string `param:"id" validate:"required,mongodb"`
}

type addressIDParam struct {
	ID string `param:"addressId" validate:"required,uuid"`
}

type profileResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

type addressesResponse struct {
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	Addresses []domain.Address `json:"addresses"`
}

type userResponse struct {
	Status string       `json:"status"`
	User   *domain.User `json:"user"`
}

type listUsersResponse struct {
	Status     string         `json:"status"`
	Results    int            `json:"results"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
	Users      []*domain.User `json:"users"`
}

// GetMe returns the logged-in user.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  map[string]any
// @Router       /api/v1/users/me [get]
func (h *UserHandler) GetMe(c echo.Context) error {
	user, found := middleware.CurrentUser(c)
	if !found {
		return domain.ErrUnauthenticated
	}
	return c.JSON(http.StatusOK, userResponse{Status: "success", User: user.Sanitized()})
}

// UpdateMe changes name, email or phone of the logged-in user.
//
// @Summary      Update own profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateMeRequest  true  "Fields to change"
// @Success      200   {object}  profileResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Router       /api/v1/users/me [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	user, found := middleware.CurrentUser(c)
	if !found {
		return domain.ErrUnauthenticated
	}

	var req updateMeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	updated, err := h.users.UpdateProfile(c.Request().Context(), user.ID, ports.UpdateProfileInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{Status: "success", Message: "Profile updated successfully", User: updated})
}

// DeleteMe deactivates the logged-in account after re-checking the password.
//
// @Summary      Deactivate own account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      deleteMeRequest  true  "Current password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Router       /api/v1/users/me [delete]
func (h *UserHandler) DeleteMe(c echo.Context) error {
	user, found := middleware.CurrentUser(c)
	if !found {
		return domain.ErrUnauthenticated
	}

	var req deleteMeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.users.DeactivateAccount(c.Request().Context(), user.ID, req.Password); err != nil {
		return err
	}
	h.cookies.clear(c)
	return c.JSON(http.StatusOK, ok("Account deactivated successfully"))
}

// AddAddress appends an entry to the address book.
//
// @Summary      Add address
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      addressRequest  true  "Address"
// @Success      201   {object}  addressesResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Router       /api/v1/users/addresses [post]
func (h *UserHandler) AddAddress(c echo.Context) error {
	user, found := middleware.CurrentUser(c)
	if !found {
		return domain.ErrUnauthenticated
	}

	var req addressRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	book, err := h.users.AddAddress(c.Request().Context(), user.ID, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, addressesResponse{Status: "success", Message: "Address added successfully", Addresses: book})
}

// UpdateAddress edits one address book entry.
//
// @Summary      Update address
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        addressId  path      string          true  "Address id"
// @Param        body       body      addressRequest  true  "Fields to change"
// @Success      200        {object}  addressesResponse
// @Failure      400        {object}  map[string]any
// @Failure      404        {object}  map[string]any
// @Router       /api/v1/users/addresses/{addressId} [patch]
func (h *UserHandler) UpdateAddress(c echo.Context) error {
	user, found := middleware.CurrentUser(c)
	if !found {
		return domain.ErrUnauthenticated
	}
	id, err := addressID(c)
	if err != nil {
		return err
	}

	var req addressRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	book, err := h.users.UpdateAddress(c.Request().Context(), user.ID, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, addressesResponse{Status: "success", Message: "Address updated successfully", Addresses: book})
}

// DeleteAddress removes one address book entry.
//
// @Summary      Delete address
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        addressId  path      string  true  "Address id"
// @Success      200        {object}  addressesResponse
// @Failure      400        {object}  map[string]any
// @Failure      404        {object}  map[string]any
// @Router       /api/v1/users/addresses/{addressId} [delete]
func (h *UserHandler) DeleteAddress(c echo.Context) error {
	user, found := middleware.CurrentUser(c)
	if !found {
		return domain.ErrUnauthenticated
	}
	id, err := addressID(c)
	if err != nil {
		return err
	}

	book, err := h.users.DeleteAddress(c.Request().Context(), user.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, addressesResponse{Status: "success", Message: "Address deleted successfully", Addresses: book})
}

// ListUsers returns one page of accounts.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1, max 100000)"
// @Param        limit  query     int  false  "Page size (default 20, max 100)"
// @Success      200    {object}  listUsersResponse
// @Failure      403    {object}  map[string]any
// @Router       /api/v1/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	var q listUsersQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	res, err := h.users.ListUsers(c.Request().Context(), ports.ListUsersInput{Page: q.Page, Limit: q.Limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listUsersResponse{
		Status:     "success",
		Results:    len(res.Items),
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
		Users:      res.Items,
	})
}

// GetUser returns one account by id.
//
// @Summary      Get user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      400  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /api/v1/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	user, err := h.users.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Status: "success", User: user})
}

// DeleteUser removes an account permanently.
//
// @Summary      Delete user
// @Tags         admin
// @Security     BearerAuth
// @Param        id   path  string  true  "User id"
// @Success      204
// @Failure      400  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /api/v1/users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.users.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func pathID(c echo.Context) (string, error) {
	p := userIDParam{ID: c.Param("id")}
	if err := c.Validate(&p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func addressID(c echo.Context) (string, error) {
	p := addressIDParam{ID: c.Param("addressId")}
	if err := c.Validate(&p); err != nil {
		return "", err
	}
	return p.ID, nil
}
