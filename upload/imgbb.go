// Package upload is the image passthrough: the relay never stores
// images, it forwards them to a third-party host and hands the hosted
// URL back. Opaque to relay correctness.
package upload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	endpoint string // upstream upload URL, key included
	log      *slog.Logger
}

func NewHandler(endpoint, key string, log *slog.Logger) *Handler {
	return &Handler{
		endpoint: fmt.Sprintf("%s?key=%s", endpoint, key),
		log:      log,
	}
}

type uploadRequest struct {
	Image string `json:"image"` // base64 payload
}

type hostResponse struct {
	Data struct {
		Image struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"data"`
}

// Post handles POST /upload_img. The payload is sniffed before the
// forward so the upstream quota is not burned on non-images.
func (h *Handler) Post(c *fiber.Ctx) error {
	var req uploadRequest
	if err := c.BodyParser(&req); err != nil || req.Image == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if kind := mimetype.Detect(decoded); !strings.HasPrefix(kind.String(), "image/") {
		h.log.Warn(fmt.Sprintf("Upload refused, payload is %s", kind.String()))
		return c.SendStatus(fiber.StatusBadRequest)
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("image", req.Image)

	code, body, errs := fiber.Post(h.endpoint).Form(args).Bytes()
	if len(errs) > 0 {
		h.log.Error("Image host unreachable", "error", errs[0])
		return c.SendStatus(fiber.StatusBadGateway)
	}
	if code != fiber.StatusOK {
		h.log.Error(fmt.Sprintf("Image host answered %d", code))
		return c.SendStatus(fiber.StatusBadGateway)
	}

	var resp hostResponse
	if err = json.Unmarshal(body, &resp); err != nil || resp.Data.Image.URL == "" {
		return c.SendStatus(fiber.StatusBadGateway)
	}
	return c.SendString(resp.Data.Image.URL)
}
