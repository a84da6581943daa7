package api

import (
	"github.com/gofiber/fiber/v2"
)

func (d *Deps) listAgentActions(c *fiber.Ctx) error {
	take := c.QueryInt("take", 20)
	if take > 100 {
		take = 100
	}

	items, err := d.Audits.Recent(c.Params("agentId"), take)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}
