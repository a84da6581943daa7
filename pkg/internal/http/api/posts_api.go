package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parlornet/parlor/pkg/internal/http/exts"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/services"
)

func (d *Deps) getPost(c *fiber.Ctx) error {
	view, err := d.Feed.View(c.Params("postId"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (d *Deps) createPost(c *fiber.Ctx) error {
	var data struct {
		Title   *string `json:"title"`
		Content string  `json:"content" validate:"required,max=4096"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	item, err := d.Posts.Create(d.UserID, models.PostBody{
		Title:   data.Title,
		Content: data.Content,
	}, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (d *Deps) editPost(c *fiber.Ctx) error {
	var data struct {
		Title   *string `json:"title"`
		Content string  `json:"content" validate:"required,max=4096"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	item, err := d.Posts.Edit(d.UserID, c.Params("postId"), models.PostBody{
		Title:   data.Title,
		Content: data.Content,
	}, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (d *Deps) deletePost(c *fiber.Ctx) error {
	if err := d.Posts.Delete(d.UserID, c.Params("postId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (d *Deps) sharePost(c *fiber.Ctx) error {
	var data struct {
		Quote *string `json:"quote"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	item, err := d.Posts.Share(d.UserID, c.Params("postId"), data.Quote, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (d *Deps) searchPost(c *fiber.Ctx) error {
	probe := c.Query("probe")
	take := c.QueryInt("take", 20)

	items, err := d.Feed.Search(d.UserID, probe, take)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}

func (d *Deps) listFeed(c *fiber.Ctx) error {
	take := c.QueryInt("take", 20)

	entries, next, err := d.Feed.GetPage(d.UserID, c.Query("cursor"), take, services.RankingFromConfig())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":        entries,
		"next_cursor": next,
	})
}
