package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

// TemplateHandler serves data-transfer templates: reusable packets the
// dashboard sends to chargers with one click.
type TemplateHandler struct {
	store    *store.Store
	commands ports.CommandService
	log      *zap.Logger
}

func NewTemplateHandler(st *store.Store, commands ports.CommandService, log *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		store:    st,
		commands: commands,
		log:      log,
	}
}

// List handles GET /api/v1/templates
func (h *TemplateHandler) List(c *fiber.Ctx) error {
	templates, err := h.store.ListTemplates(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"count":     len(templates),
		"templates": templates,
	})
}

// TemplateRequest creates or updates a data-transfer template
type TemplateRequest struct {
	Name      string `json:"name"`
	VendorID  string `json:"vendor_id"`
	MessageID string `json:"message_id,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Create handles POST /api/v1/templates
func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" || req.VendorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and vendor_id are required",
		})
	}

	t := &domain.DataTransferTemplate{
		Name:      req.Name,
		VendorID:  req.VendorID,
		MessageID: req.MessageID,
		Data:      req.Data,
	}
	if err := h.store.SaveTemplate(c.Context(), t); err != nil {
		h.log.Error("Failed to save template", zap.String("name", req.Name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(t)
}

// Update handles PUT /api/v1/templates/:templateId
func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("templateId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	existing, err := h.store.GetTemplate(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if existing == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.VendorID != "" {
		existing.VendorID = req.VendorID
	}
	existing.MessageID = req.MessageID
	existing.Data = req.Data

	if err := h.store.SaveTemplate(c.Context(), existing); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(existing)
}

// Delete handles DELETE /api/v1/templates/:templateId
func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("templateId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	if err := h.store.DeleteTemplate(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "Deleted",
		"message": "Template removed",
	})
}

// Send handles POST /api/v1/templates/:templateId/send/:id and fires the
// template at one charger as a DataTransfer.
func (h *TemplateHandler) Send(c *fiber.Ctx) error {
	templateID, err := c.ParamsInt("templateId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}
	chargePointID := c.Params("id")

	t, err := h.store.GetTemplate(c.Context(), templateID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if t == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var data interface{}
	if t.Data != "" {
		data = t.Data
	}
	result, err := h.commands.DataTransfer(c.Context(), chargePointID, t.VendorID, t.MessageID, data)
	if err != nil {
		h.log.Error("Template send failed",
			zap.Int("template_id", templateID),
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(result)
}
