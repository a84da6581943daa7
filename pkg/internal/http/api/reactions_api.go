package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parlornet/parlor/pkg/internal/http/exts"
	"github.com/parlornet/parlor/pkg/internal/models"
)

func (d *Deps) reactPost(c *fiber.Ctx) error {
	return d.react(c, c.Params("postId"), models.ReactionTargetPost)
}

func (d *Deps) reactComment(c *fiber.Ctx) error {
	return d.react(c, c.Params("commentId"), models.ReactionTargetComment)
}

func (d *Deps) react(c *fiber.Ctx, targetID string, targetKind models.ReactionTarget) error {
	var data struct {
		Kind string `json:"kind" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	item, err := d.Reactions.React(d.UserID, targetID, targetKind, models.ReactionKind(data.Kind), time.Now())
	if err != nil {
		return err
	}
	return c.JSON(item)
}
