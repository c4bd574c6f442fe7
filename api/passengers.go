package api

import (
	"net/http"

	"github.com/Domenick1991/flightmanager/internal/service/passengers"
	"github.com/gin-gonic/gin"
)

type PassengerHandler struct {
	service passengers.PassengerUseCase
}

type accountLinkRequest struct {
	AccountID *int64 `json:"account_id"`
}

func NewPassengerHandler(service passengers.PassengerUseCase) *PassengerHandler {
	return &PassengerHandler{service: service}
}

func (h *PassengerHandler) Register(r Routes) {
	r.Staff.GET("/passengers", h.list)
	r.Staff.GET("/passengers/:id", h.get)
	r.Staff.PUT("/passengers/:id", h.update)
	r.Staff.DELETE("/passengers/:id", h.delete)
	r.Staff.PUT("/passengers/:id/account", h.link)
}

// list also serves lookups by identity number through ?egn=.
func (h *PassengerHandler) list(c *gin.Context) {
	if egn := c.Query("egn"); egn != "" {
		p, err := h.service.FindByIdentityNumber(c.Request.Context(), egn)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
		return
	}
	page, err := h.service.List(c.Request.Context(), pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PassengerHandler) get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PassengerHandler) update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req passengers.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PassengerHandler) delete(c *gin.Context) {
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

// link claims the profile for an account, or releases it when account_id is null.
func (h *PassengerHandler) link(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req accountLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.AccountID == nil {
		if err := h.service.Release(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	p, err := h.service.Claim(c.Request.Context(), id, *req.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

