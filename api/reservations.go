package api

import (
	"net/http"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/Domenick1991/flightmanager/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
}

func NewReservationHandler(service reservation.ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) Register(r Routes) {
	r.Public.POST("/reservations", h.create)
	r.Public.POST("/reservations/group", h.createGroup)
	r.Public.GET("/reservations/confirm", h.confirm)
	r.Public.GET("/reservations/check", h.check)

	r.Staff.GET("/reservations", h.list)
	r.Staff.GET("/reservations/:id", h.get)
	r.Staff.PUT("/reservations/:id", h.update)
	r.Staff.DELETE("/reservations/:id", h.delete)
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req reservation.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	created, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ReservationHandler) createGroup(c *gin.Context) {
	var req reservation.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	created, err := h.service.CreateGroup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// confirm serves the emailed link. id is a single id or a comma-joined group.
func (h *ReservationHandler) confirm(c *gin.Context) {
	ids, ok := idList(c.Query("id"))
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	token := c.Query("token")

	if len(ids) == 1 {
		r, err := h.service.Confirm(c.Request.Context(), ids[0], token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reservations": []domain.Reservation{*r}})
		return
	}

	confirmed, err := h.service.ConfirmGroup(c.Request.Context(), ids, token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": confirmed})
}

func (h *ReservationHandler) check(c *gin.Context) {
	flightID, ok := optionalInt64Query(c, "flight_id")
	if !ok {
		return
	}
	if flightID == 0 {
		badRequest(c, "flight_id is required")
		return
	}
	exists, err := h.service.Exists(c.Request.Context(), c.Query("egn"), flightID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (h *ReservationHandler) list(c *gin.Context) {
	passengerID, ok := optionalInt64Query(c, "passenger_id")
	if !ok {
		return
	}
	flightID, ok := optionalInt64Query(c, "flight_id")
	if !ok {
		return
	}
	page, err := h.service.List(c.Request.Context(), repository.ReservationFilter{PassengerID: passengerID, FlightID: flightID}, pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReservationHandler) get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	details, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *ReservationHandler) update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req reservation.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) delete(c *gin.Context) {
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
