package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/sushihentaime/blogpipe/internal/blogservice"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)
	router.Handler(http.MethodGet, "/metrics", app.metricsRegistry.Handler())

	// user service
	router.HandlerFunc(http.MethodGet, "/v1/users", app.getAllUsersHandler)
	router.HandlerFunc(http.MethodPost, "/v1/users", app.createUserHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/:id", app.getUserHandler)
	router.HandlerFunc(http.MethodPut, "/v1/users/:id", app.updateUserHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/users/:id", app.deleteUserHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/users/:id/soft-delete", app.softDeleteUserHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/:id/blogs", app.getBlogsByUserIDHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/:id/comments", app.getCommentsByUserIDHandler)

	// blog service
	router.HandlerFunc(http.MethodGet, "/v1/blogs", app.getAllBlogsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs", app.createBlogHandler)
	router.HandlerFunc(http.MethodGet, "/v1/blogs/:id", app.getBlogHandler)
	router.HandlerFunc(http.MethodPut, "/v1/blogs/:id", app.updateBlogHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/blogs/:id", app.deleteBlogHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs/:id/like", app.reactToBlogHandler(blogservice.Like))
	router.HandlerFunc(http.MethodPost, "/v1/blogs/:id/dislike", app.reactToBlogHandler(blogservice.Dislike))
	router.HandlerFunc(http.MethodGet, "/v1/blogs/:id/comments", app.getCommentsByBlogIDHandler)
	router.HandlerFunc(http.MethodGet, "/v1/search/blogs", app.searchBlogsHandler)

	// comment service
	router.HandlerFunc(http.MethodPost, "/v1/comments", app.createCommentHandler)
	router.HandlerFunc(http.MethodPut, "/v1/comments/:id", app.updateCommentHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/comments/:id", app.deleteCommentHandler)

	return app.metrics(app.recoverPanic(app.enableCORS(app.rateLimit(app.logRequest(router)))))
}
