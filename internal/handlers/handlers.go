package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lockerhub/internal/config"
	"lockerhub/internal/middleware"
	"lockerhub/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	auth         *service.AuthService
	lockers      *service.LockerService
	reservations *service.ReservationService
	database     Pinger
	cache        Pinger
}

// NewHandlerSet wires the HTTP handlers. database may be nil when the memory
// driver is in use.
func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	auth *service.AuthService,
	lockers *service.LockerService,
	reservations *service.ReservationService,
	database Pinger,
	cache Pinger,
) (HandlerSet, error) {
	if err := setupValidation(); err != nil {
		return HandlerSet{}, err
	}

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		auth:         auth,
		lockers:      lockers,
		reservations: reservations,
		database:     database,
		cache:        cache,
	}, nil
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authn := middleware.Auth(h.auth)
	can := func(capability service.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(capability)
	}

	auth := router.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", authn, h.Me)

	lockers := router.Group("/lockers")
	lockers.POST("/unlock", h.Unlock)
	{
		view := lockers.Group("", authn, can(service.CapViewLockers))
		view.GET("", h.ListLockers)
		view.GET("/available", h.ListAvailableLockers)
		view.GET("/:id", h.GetLocker)

		manage := lockers.Group("", authn, can(service.CapManageLockers))
		manage.POST("", h.CreateLocker)
		manage.PUT("/:id", h.UpdateLocker)
		manage.PATCH("/:id", h.PatchLocker)
		manage.DELETE("/:id", h.DeactivateLocker)
		manage.POST("/:id/reactivate", h.ReactivateLocker)
	}

	reservations := router.Group("/reservations")
	{
		own := reservations.Group("", authn, can(service.CapOwnReservations))
		own.GET("", h.ListReservations)
		own.GET("/active", h.ListActiveReservations)
		own.GET("/:id", h.GetReservation)
		own.PUT("/:id/release", h.ReleaseReservation)
		own.PATCH("/:id/release", h.ReleaseReservation)

		self := reservations.Group("", authn, can(service.CapSelfServe))
		self.POST("", h.CreateReservation)

		manage := reservations.Group("", authn, can(service.CapManageReservations))
		manage.GET("/all", h.ListAllReservations)
		manage.PUT("/:id", h.UpdateReservation)
		manage.PATCH("/:id", h.UpdateReservation)
	}
}

// identity returns the caller set by the auth middleware.
func identity(c *gin.Context) service.Identity {
	id, _ := middleware.CurrentIdentity(c)
	return id
}
