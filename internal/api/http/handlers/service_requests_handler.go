package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// ServiceRequestsHandler serves the authenticated service request routes.
type ServiceRequestsHandler struct {
	requests *service.ServiceRequestService
}

// NewServiceRequestsHandler constructs handler.
func NewServiceRequestsHandler(requests *service.ServiceRequestService) *ServiceRequestsHandler {
	return &ServiceRequestsHandler{requests: requests}
}

// Create handles POST /api/service-requests.
func (h *ServiceRequestsHandler) Create(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateServiceRequestRequest
	if err := parseJSONBody(c, &req); err != nil {
		return err
	}
	input, err := req.ToInput()
	if err != nil {
		return err
	}

	created, err := h.requests.Create(c.UserContext(), userID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewServiceRequestResponse(created))
}

// List handles GET /api/service-requests.
func (h *ServiceRequestsHandler) List(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	list, err := h.requests.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewServiceRequestList(list))
}

// Get handles GET /api/service-requests/:id.
func (h *ServiceRequestsHandler) Get(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	req, err := h.requests.Get(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewServiceRequestResponse(req))
}

// Update handles PUT /api/service-requests/:id.
func (h *ServiceRequestsHandler) Update(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateServiceRequestRequest
	if err := parseJSONBody(c, &req); err != nil {
		return err
	}

	updated, err := h.requests.Update(c.UserContext(), userID, c.Params("id"), req.ToPatch())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewServiceRequestResponse(updated))
}

// History handles GET /api/service-requests/:id/history.
func (h *ServiceRequestsHandler) History(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	entries, err := h.requests.History(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewHistoryResponse(entries))
}

func requireUser(c *fiber.Ctx) (string, error) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return "", apperrors.NewUnauthenticated("Missing authorization header")
	}
	return userID, nil
}
