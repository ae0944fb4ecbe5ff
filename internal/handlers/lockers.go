package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lockerhub/internal/middleware"
	"lockerhub/internal/models"
	"lockerhub/internal/service"
)

type lockerResponse struct {
	ID           string    `json:"id"`
	LockerNumber string    `json:"locker_number"`
	Location     string    `json:"location"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newLockerResponse(l models.Locker) lockerResponse {
	return lockerResponse{
		ID:           l.ID,
		LockerNumber: l.Number,
		Location:     l.Location,
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func newLockerList(lockers []models.Locker) []lockerResponse {
	out := make([]lockerResponse, 0, len(lockers))
	for _, l := range lockers {
		out = append(out, newLockerResponse(l))
	}
	return out
}

type lockerRequest struct {
	LockerNumber string `json:"locker_number" binding:"required,max=20"`
	Location     string `json:"location" binding:"required,max=100"`
}

type patchLockerRequest struct {
	LockerNumber *string `json:"locker_number" binding:"omitempty,max=20"`
	Location     *string `json:"location" binding:"omitempty,max=100"`
}

func (h HandlerSet) ListLockers(c *gin.Context) {
	filter := models.LockerFilter{
		Status:   models.LockerStatus(c.Query("status")),
		Location: c.Query("location"),
	}

	lockers, err := h.lockers.List(c.Request.Context(), filter)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockerList(lockers))
}

func (h HandlerSet) ListAvailableLockers(c *gin.Context) {
	lockers, err := h.lockers.ListAvailable(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockerList(lockers))
}

func (h HandlerSet) GetLocker(c *gin.Context) {
	locker, err := h.lockers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockerResponse(locker))
}

func (h HandlerSet) CreateLocker(c *gin.Context) {
	var req lockerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bindError(err))
		return
	}

	locker, err := h.lockers.Create(c.Request.Context(), service.LockerInput{
		Number:   req.LockerNumber,
		Location: req.Location,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newLockerResponse(locker))
}

func (h HandlerSet) UpdateLocker(c *gin.Context) {
	var req lockerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bindError(err))
		return
	}

	locker, err := h.lockers.Update(c.Request.Context(), c.Param("id"), service.LockerInput{
		Number:   req.LockerNumber,
		Location: req.Location,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockerResponse(locker))
}

// PatchLocker updates only the fields present in the body.
func (h HandlerSet) PatchLocker(c *gin.Context) {
	var req patchLockerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	current, err := h.lockers.Get(ctx, c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	input := service.LockerInput{Number: current.Number, Location: current.Location}
	if req.LockerNumber != nil {
		input.Number = *req.LockerNumber
	}
	if req.Location != nil {
		input.Location = *req.Location
	}

	locker, err := h.lockers.Update(ctx, current.ID, input)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockerResponse(locker))
}

func (h HandlerSet) DeactivateLocker(c *gin.Context) {
	result, err := h.lockers.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":               "locker deactivated",
		"locker":                newLockerResponse(result.Locker),
		"released_reservations": result.Released,
	})
}

func (h HandlerSet) ReactivateLocker(c *gin.Context) {
	locker, err := h.lockers.Reactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockerResponse(locker))
}

type unlockRequest struct {
	LockerNumber string `json:"locker_number" binding:"required,max=20"`
	AccessPIN    string `json:"access_pin" binding:"required,pin"`
}

// Unlock is the terminal endpoint. It needs no session; the PIN is the
// credential.
func (h HandlerSet) Unlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bindError(err))
		return
	}

	result, err := h.reservations.VerifyUnlock(c.Request.Context(), service.UnlockInput{
		Caller: c.ClientIP(),
		Number: req.LockerNumber,
		PIN:    req.AccessPIN,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	// The terminal already holds the PIN; do not echo it back.
	reservation := result.Reservation
	reservation.AccessPIN = ""

	c.JSON(http.StatusOK, gin.H{
		"message":     "locker " + result.Locker.Number + " unlocked",
		"locker":      newLockerResponse(result.Locker),
		"reservation": newReservationResponse(reservation, &result.Locker),
	})
}
