package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/minhvu/movie-ticket-booking/internal/model"
	"github.com/minhvu/movie-ticket-booking/internal/queue"
	"github.com/minhvu/movie-ticket-booking/internal/repository"
	queue_publisher "github.com/minhvu/movie-ticket-booking/internal/service"
	"github.com/minhvu/movie-ticket-booking/pkg/logger"
)

// BookingHandler groups the repositories required to run the booking
// ledger: availability reads, booking creation, confirmation with
// transaction and ticket writes, and cancellation with refunds.  All
// methods assume that JWT authentication and role validation has
// already been performed by middleware where the route requires it.
// Each mutating method runs its critical DB operations inside a single
// transaction to guarantee atomicity.
type BookingHandler struct {
	ShowtimeRepo    *repository.ShowtimeRepo
	SeatRepo        *repository.SeatRepo
	BookingRepo     *repository.BookingRepo
	TransactionRepo *repository.TransactionRepo
	TicketRepo      *repository.TicketRepo
	FoodRepo        *repository.FoodRepo
	Log             logger.Logger

	// PublishConfirmed is invoked after a confirm transaction commits.
	// Failures are logged, never surfaced: the booking is confirmed
	// regardless of whether downstream consumers hear about it.
	PublishConfirmed func(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// NewBookingHandler constructs a BookingHandler with the provided
// repositories.  All repository dependencies must be non-nil.
func NewBookingHandler(showtimeRepo *repository.ShowtimeRepo, seatRepo *repository.SeatRepo, bookingRepo *repository.BookingRepo, transactionRepo *repository.TransactionRepo, ticketRepo *repository.TicketRepo, foodRepo *repository.FoodRepo, log logger.Logger) *BookingHandler {
	if showtimeRepo == nil || seatRepo == nil || bookingRepo == nil || transactionRepo == nil || ticketRepo == nil || foodRepo == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{
		ShowtimeRepo:     showtimeRepo,
		SeatRepo:         seatRepo,
		BookingRepo:      bookingRepo,
		TransactionRepo:  transactionRepo,
		TicketRepo:       ticketRepo,
		FoodRepo:         foodRepo,
		Log:              log,
		PublishConfirmed: queue_publisher.PublishBookingConfirmed,
	}
}

// GetAvailableSeats handles GET /v1/bookings/showtimes/:showtimeId/seats.
// It returns every seat in the showtime's hall with its live status:
// "booked" when a pending or confirmed booking holds it, "available"
// otherwise.  404 when the showtime does not exist.
func (h *BookingHandler) GetAvailableSeats(c echo.Context) error {
	showtimeID, err := strconv.ParseUint(c.Param("showtimeId"), 10, 64)
	if err != nil || showtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	ctx := c.Request().Context()
	if _, err := h.ShowtimeRepo.GetByID(ctx, showtimeID); err != nil {
		if err == repository.ErrShowtimeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		h.Log.Error("availability: showtime lookup failed", "showtime_id", showtimeID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	seats, err := h.BookingRepo.SeatAvailability(ctx, showtimeID)
	if err != nil {
		h.Log.Error("availability: seat query failed", "showtime_id", showtimeID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat availability"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// GetFoodItems handles GET /v1/bookings/food-items.  Returns the
// available concessions catalog.
func (h *BookingHandler) GetFoodItems(c echo.Context) error {
	items, err := h.FoodRepo.ListAvailable(c.Request().Context())
	if err != nil {
		h.Log.Error("food items query failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load food items"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type foodLine struct {
	ItemID   uint64 `json:"item_id" validate:"required"`
	Quantity uint32 `json:"quantity" validate:"required,gt=0"`
}

type createBookingRequest struct {
	ShowtimeID uint64     `json:"showtime_id" validate:"required"`
	SeatIDs    []uint64   `json:"seat_ids" validate:"required,min=1"`
	FoodItems  []foodLine `json:"food_items" validate:"omitempty,dive"`
}

// CreateBooking handles POST /v1/bookings.  It validates the request,
// locks the showtime row for the duration of the transaction, verifies
// every seat belongs to the hall and is not already held by a pending
// or confirmed booking, prices seats from the seat type catalog and
// food lines from the concessions catalog, and inserts the booking in
// pending status together with its priced booking_seats rows.  No
// transaction ledger row and no tickets are written here; those appear
// at confirmation.  Either every row commits or none do.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids must be a non-empty array"})
	}
	// deduplicate seat IDs so one request cannot hold the same seat twice
	unique := make([]uint64, 0, len(body.SeatIDs))
	seen := make(map[uint64]struct{})
	for _, id := range body.SeatIDs {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid seat IDs provided"})
	}

	ctx := c.Request().Context()
	tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the showtime row; all concurrent bookings for this showtime
	// queue behind this lock until commit.
	hallID, availableSeats, err := h.ShowtimeRepo.LockForBookingTx(ctx, tx, body.ShowtimeID)
	if err != nil {
		if err == repository.ErrShowtimeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		h.Log.Error("create booking: showtime lock failed", "showtime_id", body.ShowtimeID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// The cached counter is only a capacity pre-check; the per-seat
	// check below is what actually prevents double booking.
	if uint32(len(unique)) > availableSeats {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrCapacityExceeded.Error()})
	}

	hallSeats, err := h.SeatRepo.SeatsInHallTx(ctx, tx, hallID, unique)
	if err != nil {
		h.Log.Error("create booking: seat lookup failed", "showtime_id", body.ShowtimeID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	for _, sid := range unique {
		if _, ok := hallSeats[sid]; !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":   repository.ErrInvalidSeat.Error(),
				"seat_id": sid,
			})
		}
	}

	held, err := h.BookingRepo.HeldSeatIDsTx(ctx, tx, body.ShowtimeID, unique)
	if err != nil {
		h.Log.Error("create booking: hold check failed", "showtime_id", body.ShowtimeID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if len(held) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       repository.ErrSeatUnavailable.Error(),
			"unavailable": held,
		})
	}

	prices, err := h.SeatRepo.PricesByType(ctx, tx)
	if err != nil {
		h.Log.Error("create booking: price catalog load failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	var totalCents int64
	seatRows := make([]repository.BookingSeatRecord, 0, len(unique))
	for _, sid := range unique {
		seat := hallSeats[sid]
		priceCents, ok := prices[seat.SeatType]
		if !ok {
			h.Log.Error("create booking: no price for seat type", "seat_type", seat.SeatType)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "price not found for seat"})
		}
		totalCents += int64(priceCents)
		seatRows = append(seatRows, repository.BookingSeatRecord{SeatID: sid, PriceCents: priceCents})
	}

	// Price and snapshot food lines; a line referencing an unknown or
	// unavailable item rejects the whole booking.
	var foodJSON *string
	if len(body.FoodItems) > 0 {
		ids := make([]uint64, 0, len(body.FoodItems))
		for _, f := range body.FoodItems {
			ids = append(ids, f.ItemID)
		}
		foodPrices, err := h.FoodRepo.AvailablePricesTx(ctx, tx, ids)
		if err != nil {
			h.Log.Error("create booking: food catalog load failed", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		snapshot := make([]model.FoodOrderItem, 0, len(body.FoodItems))
		for _, f := range body.FoodItems {
			price, ok := foodPrices[f.ItemID]
			if !ok || f.Quantity == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": repository.ErrInvalidFoodItem.Error()})
			}
			totalCents += price * int64(f.Quantity)
			snapshot = append(snapshot, model.FoodOrderItem{ItemID: f.ItemID, Quantity: f.Quantity, PriceCents: price})
		}
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to encode food items"})
		}
		s := string(raw)
		foodJSON = &s
	}

	rec := &repository.BookingRecord{
		UserID:           userID,
		ShowtimeID:       body.ShowtimeID,
		TotalAmountCents: totalCents,
		Status:           model.BookingStatusPending,
		FoodItemsJSON:    foodJSON,
	}
	if err := h.BookingRepo.CreateTx(ctx, tx, rec); err != nil {
		h.Log.Error("create booking: insert failed", "showtime_id", body.ShowtimeID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
	}
	for i := range seatRows {
		seatRows[i].BookingID = rec.ID
	}
	if err := h.BookingRepo.CreateSeatsBulkTx(ctx, tx, seatRows); err != nil {
		h.Log.Error("create booking: seat insert failed", "booking_id", rec.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking seats"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.Log.Info("booking created", "booking_id", rec.ID, "user_id", userID, "showtime_id", body.ShowtimeID, "seats", len(seatRows), "total_cents", totalCents)
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":         rec.ID,
		"status":             rec.Status,
		"total_amount_cents": totalCents,
	})
}

type confirmBookingRequest struct {
	PaymentMethod   string          `json:"payment_method" validate:"required"`
	GatewayResponse json.RawMessage `json:"gateway_response"`
}

// ConfirmBooking handles PUT /v1/bookings/:bookingId/confirm.  It is
// the caller-facing form of the pending→confirmed transition: one
// completed transaction row and one active ticket per booked seat are
// written atomically together with the status flip.
func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("bookingId"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body confirmBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_method is required"})
	}
	gatewayJSON := "{}"
	if len(body.GatewayResponse) > 0 {
		gatewayJSON = string(body.GatewayResponse)
	}
	if err := h.Confirm(c.Request().Context(), bookingID, body.PaymentMethod, gatewayJSON); err != nil {
		status := ledgerErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.Error("confirm booking failed", "booking_id", bookingID, "err", err)
			return c.JSON(status, echo.Map{"error": "failed to confirm booking"})
		}
		return c.JSON(status, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking confirmed and transaction recorded"})
}

// Confirm performs the pending→confirmed transition as one atomic
// unit: it locks the booking row, rejects any status other than
// pending, flips the status, appends a completed transaction carrying
// the booking's total and the gateway payload, and mints one active
// ticket per booking seat.  The payment gateway callback path uses
// this same method, so both entry points share identical semantics.
func (h *BookingHandler) Confirm(ctx context.Context, bookingID uint64, paymentMethod, gatewayResponse string) error {
	tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	userID, status, totalCents, err := h.BookingRepo.LockForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if status != model.BookingStatusPending {
		return repository.ErrInvalidStateTransition
	}
	if err := h.BookingRepo.UpdateStatusTx(ctx, tx, bookingID, model.BookingStatusConfirmed); err != nil {
		return err
	}
	if err := h.TransactionRepo.CreateTx(ctx, tx, &repository.TransactionRecord{
		BookingID:       bookingID,
		AmountCents:     totalCents,
		PaymentMethod:   paymentMethod,
		PaymentStatus:   model.PaymentStatusCompleted,
		GatewayResponse: gatewayResponse,
	}); err != nil {
		return err
	}
	minted, err := h.TicketRepo.MintForBookingTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	h.Log.Info("booking confirmed", "booking_id", bookingID, "user_id", userID, "tickets", minted, "total_cents", totalCents)

	if h.PublishConfirmed != nil {
		ev := queue.BookingConfirmedEvent{
			BookingID:        bookingID,
			UserID:           userID,
			TicketCount:      minted,
			TotalAmountCents: totalCents,
			PaymentMethod:    paymentMethod,
			ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := h.PublishConfirmed(ctx, ev); err != nil {
			h.Log.Warn("booking confirmed event publish failed", "booking_id", bookingID, "err", err)
		}
	}
	return nil
}

// CancelBooking handles POST /v1/bookings/:bookingId/cancel.  Only the
// booking's owner may cancel it here (the reaper cancels stale pending
// bookings through its own path).  Cancelling a confirmed booking
// additionally writes a refund transaction negating the most recent
// completed payment and cascades the booking's tickets to cancelled.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("bookingId"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx := c.Request().Context()
	tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ownerID, status, _, err := h.BookingRepo.LockForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		h.Log.Error("cancel booking: lock failed", "booking_id", bookingID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if ownerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	if status != model.BookingStatusPending && status != model.BookingStatusConfirmed {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrInvalidStateTransition.Error()})
	}

	if err := h.BookingRepo.UpdateStatusTx(ctx, tx, bookingID, model.BookingStatusCancelled); err != nil {
		h.Log.Error("cancel booking: status update failed", "booking_id", bookingID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}
	if status == model.BookingStatusConfirmed {
		amountCents, method, found, err := h.TransactionRepo.LatestCompletedTx(ctx, tx, bookingID)
		if err != nil {
			h.Log.Error("cancel booking: refund lookup failed", "booking_id", bookingID, "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
		}
		if found {
			if err := h.TransactionRepo.CreateTx(ctx, tx, &repository.TransactionRecord{
				BookingID:       bookingID,
				AmountCents:     -amountCents,
				PaymentMethod:   method,
				PaymentStatus:   model.PaymentStatusRefunded,
				GatewayResponse: `{"refund_reason":"user cancelled booking"}`,
			}); err != nil {
				h.Log.Error("cancel booking: refund insert failed", "booking_id", bookingID, "err", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
			}
		}
		if err := h.TicketRepo.CancelByBookingTx(ctx, tx, bookingID); err != nil {
			h.Log.Error("cancel booking: ticket cascade failed", "booking_id", bookingID, "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.Log.Info("booking cancelled", "booking_id", bookingID, "user_id", userID, "was_status", status)
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled successfully"})
}

// GetBookingDetails handles GET /v1/bookings/:bookingId.  The booking
// owner and admins may view the full detail including seats, the
// transaction ledger and tickets.
func (h *BookingHandler) GetBookingDetails(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("bookingId"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	detail, err := h.BookingRepo.GetDetail(c.Request().Context(), bookingID)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		h.Log.Error("booking detail query failed", "booking_id", bookingID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
	}
	if detail.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	return c.JSON(http.StatusOK, detail)
}

// GetUserBookings handles GET /v1/bookings/users/:userId.  A user may
// list their own confirmed bookings; admins may list anyone's.
func (h *BookingHandler) GetUserBookings(c echo.Context) error {
	authUserID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || targetID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if targetID != authUserID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	items, err := h.BookingRepo.ListByUser(c.Request().Context(), targetID)
	if err != nil {
		h.Log.Error("user bookings query failed", "user_id", targetID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetAllBookings handles GET /v1/bookings/admin/bookings.  Admin-only
// listing, optionally filtered by ?status=.
func (h *BookingHandler) GetAllBookings(c echo.Context) error {
	items, err := h.BookingRepo.ListForAdmin(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		h.Log.Error("admin bookings query failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetAllTickets handles GET /v1/bookings/admin/tickets.  Admin-only
// ticket listing.
func (h *BookingHandler) GetAllTickets(c echo.Context) error {
	items, err := h.TicketRepo.ListForAdmin(c.Request().Context())
	if err != nil {
		h.Log.Error("admin tickets query failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
