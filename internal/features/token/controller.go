package token

import (
	"github.com/gofiber/fiber/v2"
)

type TokenController struct {
	Service TokenService
}

func NewTokenController(service TokenService) *TokenController {
	return &TokenController{Service: service}
}

func (ctrl *TokenController) Refresh(c *fiber.Ctx) error {
	if err := ctrl.Service.Refresh(c.UserContext()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status": "refreshed",
	})
}

type seedRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (ctrl *TokenController) Seed(c *fiber.Ctx) error {
	var req seedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := ctrl.Service.Seed(c.UserContext(), req.AccessToken, req.RefreshToken); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status": "seeded",
	})
}

func (ctrl *TokenController) Status(c *fiber.Ctx) error {
	status, err := ctrl.Service.Status(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(status)
}
