package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parlornet/parlor/pkg/internal/http/exts"
)

func (d *Deps) sendFriendRequest(c *fiber.Ctx) error {
	var data struct {
		UserID string `json:"user_id" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	edge, err := d.Friends.SendRequest(d.UserID, data.UserID, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(edge)
}

func (d *Deps) respondFriendRequest(c *fiber.Ctx) error {
	edgeID := c.Params("edgeId")

	var data struct {
		Accept bool `json:"accept"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	edge, err := d.Friends.Respond(d.UserID, edgeID, data.Accept, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(edge)
}

func (d *Deps) blockUser(c *fiber.Ctx) error {
	edge, err := d.Friends.Block(d.UserID, c.Params("userId"), time.Now())
	if err != nil {
		return err
	}
	return c.JSON(edge)
}
