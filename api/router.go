package api

import (
	"net/http"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/gin-gonic/gin"
)

// Routes groups the router by who may call an endpoint.
type Routes struct {
	Public *gin.RouterGroup
	Staff  *gin.RouterGroup
	Admin  *gin.RouterGroup
	Owner  *gin.RouterGroup
}

type Handler interface {
	Register(routes Routes)
}

func NewRouter(parser TokenParser, handlers ...Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("", Authenticate(parser))
	routes := Routes{
		Public: router.Group(""),
		Staff:  auth.Group("", RequireRoles(domain.RoleEmployee, domain.RoleAdmin)),
		Admin:  auth.Group("", RequireRoles(domain.RoleAdmin)),
		Owner:  auth.Group("", RequireRoles()),
	}
	for _, h := range handlers {
		h.Register(routes)
	}
	return router
}
