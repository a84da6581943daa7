package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parlornet/parlor/pkg/internal/http/exts"
)

func (d *Deps) createReply(c *fiber.Ctx) error {
	var data struct {
		Content  string  `json:"content" validate:"required,max=2048"`
		ParentID *string `json:"parent_id"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	item, err := d.Comments.Create(d.UserID, c.Params("postId"), data.ParentID, data.Content, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(item)
}
