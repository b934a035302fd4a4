package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

// IDTagHandler serves the global authorization table
type IDTagHandler struct {
	store *store.Store
	log   *zap.Logger
}

func NewIDTagHandler(st *store.Store, log *zap.Logger) *IDTagHandler {
	return &IDTagHandler{
		store: st,
		log:   log,
	}
}

// List handles GET /api/v1/id-tags
func (h *IDTagHandler) List(c *fiber.Ctx) error {
	tags, err := h.store.ListIDTags(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(tags),
		"id_tags": tags,
	})
}

// Get handles GET /api/v1/id-tags/:tag
func (h *IDTagHandler) Get(c *fiber.Ctx) error {
	tag, err := h.store.GetIDTag(c.Context(), c.Params("tag"))
	if err != nil {
		if errors.Is(err, store.ErrIDTagTooLong) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if tag == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Id tag not found",
		})
	}

	return c.JSON(tag)
}

// UpsertIDTagRequest creates or updates an authorization entry
type UpsertIDTagRequest struct {
	Tag         string     `json:"id_tag"`
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	ParentIDTag string     `json:"parent_id_tag,omitempty"`
}

// Upsert handles PUT /api/v1/id-tags
func (h *IDTagHandler) Upsert(c *fiber.Ctx) error {
	var req UpsertIDTagRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Tag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id_tag is required",
		})
	}
	if req.Status == "" {
		req.Status = domain.AuthAccepted
	}
	switch req.Status {
	case domain.AuthAccepted, domain.AuthBlocked, domain.AuthExpired, domain.AuthInvalid, domain.AuthConcurrentTx:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status",
		})
	}

	tag, err := h.store.UpsertIDTag(c.Context(), req.Tag, req.Status, req.ExpiryDate, req.ParentIDTag)
	if err != nil {
		if errors.Is(err, store.ErrIDTagTooLong) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.log.Error("Failed to save id tag", zap.String("tag", req.Tag), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(tag)
}

// Delete handles DELETE /api/v1/id-tags/:tag
func (h *IDTagHandler) Delete(c *fiber.Ctx) error {
	if err := h.store.DeleteIDTag(c.Context(), c.Params("tag")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "Deleted",
		"message": "Id tag removed",
	})
}
