// Package http exposes the driver-facing control API: going on and off
// shift, answering offers, reporting lifecycle progress and inspecting
// current state. It is a thin boundary over the flow orchestrator; all
// decisions live in the core.
package http

import (
	"errors"
	"net/http"

	"dispatch/internal/core/application/flow"
	"dispatch/internal/core/application/offers"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

// Server handles HTTP requests and coordinates with the flow orchestrator
// and query handlers.
type Server struct {
	orchestrator        *flow.Orchestrator
	getActiveDeliveries queries.GetActiveDeliveriesQueryHandler
}

// NewServer creates the HTTP server over the orchestrator and query handlers.
func NewServer(
	orchestrator *flow.Orchestrator,
	getActiveDeliveries queries.GetActiveDeliveriesQueryHandler,
) *Server {
	return &Server{
		orchestrator:        orchestrator,
		getActiveDeliveries: getActiveDeliveries,
	}
}

// RegisterRoutes mounts all API routes on the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)

	api := e.Group("/api/v1")
	api.POST("/driver/online", s.GoOnline)
	api.POST("/driver/offline", s.GoOffline)
	api.GET("/driver/state", s.GetDriverState)
	api.POST("/offers/:id/accept", s.AcceptOffer)
	api.POST("/offers/:id/decline", s.DeclineOffer)
	api.POST("/delivery/status", s.AdvanceDelivery)
	api.GET("/deliveries/active", s.GetActiveDeliveries)
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DriverStateResponse describes the driver's current shift and delivery.
type DriverStateResponse struct {
	DriverID         string  `json:"driverId"`
	Online           bool    `json:"online"`
	Tracking         bool    `json:"tracking"`
	Activity         string  `json:"activity"`
	ActiveDeliveryID *string `json:"activeDeliveryId,omitempty"`
	ActiveStatus     *string `json:"activeStatus,omitempty"`
}

// DeliveryResponse is one delivery row.
type DeliveryResponse struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	PickupLat  float64 `json:"pickupLat"`
	PickupLon  float64 `json:"pickupLon"`
	DropoffLat float64 `json:"dropoffLat"`
	DropoffLon float64 `json:"dropoffLon"`
	Price      float64 `json:"price"`
}

// AdvanceDeliveryRequest carries the requested next status by name.
type AdvanceDeliveryRequest struct {
	Status string `json:"status"`
}

// Health handles GET /health.
func (s *Server) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GoOnline handles POST /api/v1/driver/online - starts the shift.
func (s *Server) GoOnline(ctx echo.Context) error {
	if err := s.orchestrator.GoOnline(ctx.Request().Context()); err != nil {
		return s.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GoOffline handles POST /api/v1/driver/offline - ends the shift.
func (s *Server) GoOffline(ctx echo.Context) error {
	if err := s.orchestrator.GoOffline(ctx.Request().Context()); err != nil {
		return s.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetDriverState handles GET /api/v1/driver/state.
func (s *Server) GetDriverState(ctx echo.Context) error {
	state := s.orchestrator.State()

	response := DriverStateResponse{
		DriverID: state.DriverID.String(),
		Online:   state.Online,
		Tracking: state.Tracking,
		Activity: string(state.Activity),
	}
	if state.ActiveDeliveryID != nil {
		id := state.ActiveDeliveryID.String()
		response.ActiveDeliveryID = &id
	}
	if state.ActiveStatus != nil {
		status := state.ActiveStatus.String()
		response.ActiveStatus = &status
	}

	return ctx.JSON(http.StatusOK, response)
}

// AcceptOffer handles POST /api/v1/offers/:id/accept.
func (s *Server) AcceptOffer(ctx echo.Context) error {
	deliveryID, err := kernel.UUIDFromString(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid delivery id",
		})
	}

	command, err := offers.NewAcceptOfferCommand(deliveryID)
	if err != nil {
		return s.fail(ctx, err)
	}

	accepted, err := s.orchestrator.AcceptOffer(ctx.Request().Context(), command)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toDeliveryResponse(accepted))
}

// DeclineOffer handles POST /api/v1/offers/:id/decline.
func (s *Server) DeclineOffer(ctx echo.Context) error {
	deliveryID, err := kernel.UUIDFromString(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid delivery id",
		})
	}

	command, err := offers.NewDeclineOfferCommand(deliveryID)
	if err != nil {
		return s.fail(ctx, err)
	}

	if err := s.orchestrator.DeclineOffer(ctx.Request().Context(), command); err != nil {
		return s.fail(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// AdvanceDelivery handles POST /api/v1/delivery/status - moves the active
// delivery to the named next status.
func (s *Server) AdvanceDelivery(ctx echo.Context) error {
	var request AdvanceDeliveryRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	next, err := delivery.StatusFromString(request.Status)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Unknown status: " + request.Status,
		})
	}

	command, err := flow.NewAdvanceDeliveryCommand(next)
	if err != nil {
		return s.fail(ctx, err)
	}

	if err := s.orchestrator.Advance(ctx.Request().Context(), command); err != nil {
		return s.fail(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// GetActiveDeliveries handles GET /api/v1/deliveries/active.
func (s *Server) GetActiveDeliveries(ctx echo.Context) error {
	state := s.orchestrator.State()

	query, err := queries.NewGetActiveDeliveriesQuery(state.DriverID)
	if err != nil {
		return s.fail(ctx, err)
	}

	rows, err := s.getActiveDeliveries.Handle(ctx.Request().Context(), query)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to retrieve deliveries",
		})
	}

	response := make([]DeliveryResponse, len(rows))
	for i, row := range rows {
		response[i] = DeliveryResponse{
			ID:         row.ID.String(),
			Status:     row.Status.String(),
			PickupLat:  row.Pickup.Latitude(),
			PickupLon:  row.Pickup.Longitude(),
			DropoffLat: row.Dropoff.Latitude(),
			DropoffLon: row.Dropoff.Longitude(),
			Price:      row.Price,
		}
	}

	return ctx.JSON(http.StatusOK, response)
}

// fail maps core errors to HTTP status codes.
func (s *Server) fail(ctx echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrClaimConflict),
		errors.Is(err, flow.ErrDeliveryInProgress),
		errors.Is(err, offers.ErrAcceptInProgress):
		code = http.StatusConflict
	case errors.Is(err, offers.ErrNoActiveOffer),
		errors.Is(err, flow.ErrNoActiveDelivery),
		errors.Is(err, errs.ErrObjectNotFound):
		code = http.StatusNotFound
	case errors.Is(err, driver.ErrDriverIsOffline),
		errors.Is(err, errs.ErrStatusTransition):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		code = http.StatusBadRequest
	}

	return ctx.JSON(code, ErrorResponse{Code: code, Message: err.Error()})
}

func toDeliveryResponse(d *delivery.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:         d.ID().String(),
		Status:     d.Status().String(),
		PickupLat:  d.Pickup().Latitude(),
		PickupLon:  d.Pickup().Longitude(),
		DropoffLat: d.Dropoff().Latitude(),
		DropoffLon: d.Dropoff().Longitude(),
		Price:      d.Price(),
	}
}
