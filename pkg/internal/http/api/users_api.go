package api

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

func (d *Deps) listUsers(c *fiber.Ctx) error {
	items, err := d.Profiles.All()
	if err != nil {
		return err
	}
	profiles := lo.Values(items)
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID < profiles[j].ID
	})
	return c.JSON(fiber.Map{
		"count": len(profiles),
		"data":  profiles,
	})
}

func (d *Deps) getUser(c *fiber.Ctx) error {
	profile, err := d.Profiles.Get(c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(profile)
}
