package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lockerhub/internal/middleware"
	"lockerhub/internal/models"
	"lockerhub/internal/service"
)

type reservationResponse struct {
	ID            string          `json:"id"`
	Locker        string          `json:"locker"`
	LockerDetails *lockerResponse `json:"locker_details,omitempty"`
	User          string          `json:"user"`
	AccessPIN     string          `json:"access_pin,omitempty"`
	ReservedAt    time.Time       `json:"reserved_at"`
	ReservedUntil time.Time       `json:"reserved_until"`
	IsActive      bool            `json:"is_active"`
	ReleasedAt    *time.Time      `json:"released_at"`
}

func newReservationResponse(r models.Reservation, locker *models.Locker) reservationResponse {
	resp := reservationResponse{
		ID:            r.ID,
		Locker:        r.LockerID,
		User:          r.UserID,
		AccessPIN:     r.AccessPIN,
		ReservedAt:    r.CreatedAt,
		ReservedUntil: r.ReservedUntil,
		IsActive:      r.IsActive,
		ReleasedAt:    r.ReleasedAt,
	}
	if locker != nil {
		details := newLockerResponse(*locker)
		resp.LockerDetails = &details
	}
	return resp
}

// withLockers renders reservations with their locker details attached.
func (h HandlerSet) withLockers(c *gin.Context, reservations []models.Reservation) ([]reservationResponse, error) {
	ids := make([]string, 0, len(reservations))
	seen := make(map[string]struct{}, len(reservations))
	for _, r := range reservations {
		if _, ok := seen[r.LockerID]; !ok {
			seen[r.LockerID] = struct{}{}
			ids = append(ids, r.LockerID)
		}
	}

	lockers, err := h.lockers.Lookup(c.Request.Context(), ids)
	if err != nil {
		return nil, err
	}

	out := make([]reservationResponse, 0, len(reservations))
	for _, r := range reservations {
		var locker *models.Locker
		if l, ok := lockers[r.LockerID]; ok {
			locker = &l
		}
		out = append(out, newReservationResponse(r, locker))
	}
	return out, nil
}

func (h HandlerSet) renderOne(c *gin.Context, status int, r models.Reservation) {
	rendered, err := h.withLockers(c, []models.Reservation{r})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(status, rendered[0])
}

func (h HandlerSet) listReservations(c *gin.Context, input service.ListReservationsInput) {
	reservations, err := h.reservations.List(c.Request.Context(), identity(c), input)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	rendered, err := h.withLockers(c, reservations)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rendered)
}

func (h HandlerSet) ListReservations(c *gin.Context) {
	h.listReservations(c, service.ListReservationsInput{})
}

func (h HandlerSet) ListActiveReservations(c *gin.Context) {
	h.listReservations(c, service.ListReservationsInput{ActiveOnly: true})
}

// ListAllReservations is the admin view; the capability check on the route
// guarantees the caller sees every user's reservations.
func (h HandlerSet) ListAllReservations(c *gin.Context) {
	h.listReservations(c, service.ListReservationsInput{})
}

func (h HandlerSet) GetReservation(c *gin.Context) {
	reservation, err := h.reservations.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.renderOne(c, http.StatusOK, reservation)
}

type createReservationRequest struct {
	Locker        string    `json:"locker" binding:"required"`
	ReservedUntil time.Time `json:"reserved_until" binding:"required"`
}

func (h HandlerSet) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bindError(err))
		return
	}

	reservation, err := h.reservations.Create(c.Request.Context(), identity(c), req.Locker, req.ReservedUntil)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.renderOne(c, http.StatusCreated, reservation)
}

type updateReservationRequest struct {
	ReservedUntil time.Time `json:"reserved_until" binding:"required"`
}

func (h HandlerSet) UpdateReservation(c *gin.Context) {
	var req updateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bindError(err))
		return
	}

	reservation, err := h.reservations.AdminUpdateWindow(c.Request.Context(), c.Param("id"), req.ReservedUntil)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.renderOne(c, http.StatusOK, reservation)
}

func (h HandlerSet) ReleaseReservation(c *gin.Context) {
	reservation, err := h.reservations.Release(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.renderOne(c, http.StatusOK, reservation)
}
