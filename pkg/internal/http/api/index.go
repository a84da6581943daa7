package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/parlornet/parlor/pkg/internal/services"
)

// Deps holds the command surface the UI shell talks to. The local user's
// profile id is pinned at boot; agents never come through this interface.
type Deps struct {
	UserID string

	Posts         *services.Posts
	Comments      *services.Comments
	Reactions     *services.Reactions
	Friends       *services.Friends
	Feed          *services.Feed
	Notifications *services.Notifications
	Audits        *services.Audits
	Profiles      *services.Profiles
}

func MapAPIs(app *fiber.App, deps *Deps) {
	api := app.Group("/api")

	api.Get("/feed", deps.listFeed)

	api.Get("/posts/search", deps.searchPost)
	api.Post("/posts", deps.createPost)
	api.Get("/posts/:postId", deps.getPost)
	api.Put("/posts/:postId", deps.editPost)
	api.Delete("/posts/:postId", deps.deletePost)
	api.Post("/posts/:postId/replies", deps.createReply)
	api.Post("/posts/:postId/reactions", deps.reactPost)
	api.Post("/posts/:postId/share", deps.sharePost)
	api.Post("/comments/:commentId/reactions", deps.reactComment)

	api.Post("/friends", deps.sendFriendRequest)
	api.Post("/friends/:edgeId/respond", deps.respondFriendRequest)
	api.Get("/users", deps.listUsers)
	api.Get("/users/:userId", deps.getUser)
	api.Post("/users/:userId/block", deps.blockUser)

	api.Get("/notifications", deps.listNotifications)
	api.Put("/notifications/:notificationId/read", deps.markNotificationRead)

	api.Get("/agents/:agentId/actions", deps.listAgentActions)
}
