package api

import (
	"net/http"

	"github.com/Domenick1991/flightmanager/internal/service/accounts"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	service accounts.AccountUseCase
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type rolesRequest struct {
	Roles []string `json:"roles"`
}

func NewAccountHandler(service accounts.AccountUseCase) *AccountHandler {
	return &AccountHandler{service: service}
}

func (h *AccountHandler) Register(r Routes) {
	r.Public.POST("/auth/register", h.register)
	r.Public.POST("/auth/login", h.login)

	r.Owner.GET("/accounts", h.list)
	r.Owner.PUT("/accounts/:id/roles", h.assignRoles)
	r.Owner.DELETE("/accounts/:id", h.delete)
}

func (h *AccountHandler) register(c *gin.Context) {
	var req accounts.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	account, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	session, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *AccountHandler) list(c *gin.Context) {
	page, err := h.service.List(c.Request.Context(), pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AccountHandler) assignRoles(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req rolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	account, err := h.service.AssignRoles(c.Request.Context(), id, req.Roles)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
