package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func (d *Deps) listNotifications(c *fiber.Ctx) error {
	unreadOnly := c.QueryBool("unread", false)

	items, err := d.Notifications.List(d.UserID, unreadOnly)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}

func (d *Deps) markNotificationRead(c *fiber.Ctx) error {
	if err := d.Notifications.MarkRead(d.UserID, c.Params("notificationId"), time.Now()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
