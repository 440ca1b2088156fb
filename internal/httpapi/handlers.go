// Package httpapi exposes the core service over a JSON HTTP interface. It is
// a thin serving layer: validation and allocation semantics live in the core,
// and this package only maps payloads and the domain error taxonomy onto
// HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"hemocore/internal/core"
	"hemocore/internal/events"
	"hemocore/pkg/domain"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc       *core.Service
	publisher *events.Publisher
	nowFn     func() time.Time
}

// New creates a new Handler. publisher may be nil when eventing is disabled.
func New(svc *core.Service, publisher *events.Publisher) *Handler {
	return &Handler{
		svc:       svc,
		publisher: publisher,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Routes mounts all API endpoints on the supplied router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/facilities", h.createFacility)
		r.Post("/banks", h.createBank)
		r.Get("/banks/{bankID}/inventory", h.listInventory)
		r.Put("/banks/{bankID}/inventory/{bloodType}", h.upsertInventory)
		r.Get("/inventory/low-stock", h.lowStock)
		r.Get("/matches", h.findMatches)
		r.Post("/requests", h.createRequest)
		r.Get("/requests", h.listRequests)
		r.Get("/requests/urgent", h.urgentRequests)
		r.Get("/requests/{requestID}", h.getRequest)
		r.Post("/requests/{requestID}/fulfill", h.fulfillRequest)
		r.Post("/requests/{requestID}/cancel", h.cancelRequest)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// requestView decorates a BloodRequest with its externally observable status
// so pending-past-deadline reads as expired.
type requestView struct {
	domain.BloodRequest
	EffectiveStatus domain.RequestStatus `json:"effective_status"`
}

func (h *Handler) view(r domain.BloodRequest) requestView {
	return requestView{BloodRequest: r, EffectiveStatus: r.EffectiveStatus(h.nowFn())}
}

func (h *Handler) views(rs []domain.BloodRequest) []requestView {
	out := make([]requestView, len(rs))
	for i, r := range rs {
		out[i] = h.view(r)
	}
	return out
}

type createFacilityReq struct {
	Name     string              `json:"name"`
	Location *domain.Coordinates `json:"location,omitempty"`
}

func (h *Handler) createFacility(w http.ResponseWriter, r *http.Request) {
	var req createFacilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, _, err := h.svc.RegisterFacility(r.Context(), domain.Facility{Name: req.Name, Location: req.Location})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type createBankReq struct {
	Name     string              `json:"name"`
	Location *domain.Coordinates `json:"location,omitempty"`
}

func (h *Handler) createBank(w http.ResponseWriter, r *http.Request) {
	var req createBankReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, _, err := h.svc.RegisterBank(r.Context(), domain.BloodBank{Name: req.Name, Location: req.Location})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type upsertInventoryReq struct {
	UnitsAvailable int `json:"units_available"`
	UnitsReserved  int `json:"units_reserved"`
	MinThreshold   int `json:"min_threshold"`
}

func (h *Handler) upsertInventory(w http.ResponseWriter, r *http.Request) {
	bankID := chi.URLParam(r, "bankID")
	bloodType, err := domain.ParseBloodType(chi.URLParam(r, "bloodType"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	var req upsertInventoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	stored, _, err := h.svc.UpsertInventoryLine(r.Context(), domain.InventoryLine{
		BankID:         bankID,
		BloodType:      bloodType,
		UnitsAvailable: req.UnitsAvailable,
		UnitsReserved:  req.UnitsReserved,
		MinThreshold:   req.MinThreshold,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.ListInventory(r.Context(), chi.URLParam(r, "bankID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.LowStock(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) findMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bloodType, err := domain.ParseBloodType(q.Get("type"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	units, err := strconv.Atoi(q.Get("units"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "units must be an integer")
		return
	}
	var origin *domain.Coordinates
	if q.Has("lat") && q.Has("lng") {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr != nil || lngErr != nil {
			writeError(w, http.StatusBadRequest, "lat and lng must be decimal degrees")
			return
		}
		origin = &domain.Coordinates{Latitude: lat, Longitude: lng}
	}
	matches, err := h.svc.FindMatches(r.Context(), bloodType, units, origin)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

type createRequestReq struct {
	FacilityID  string    `json:"facility_id"`
	BloodType   string    `json:"blood_type"`
	Units       int       `json:"units"`
	Urgency     string    `json:"urgency"`
	RequiredBy  time.Time `json:"required_by"`
	PatientInfo *string   `json:"patient_info,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, _, err := h.svc.CreateRequest(r.Context(), core.CreateRequestInput{
		FacilityID:  req.FacilityID,
		BloodType:   domain.BloodType(req.BloodType),
		Units:       req.Units,
		Urgency:     domain.UrgencyLevel(req.Urgency),
		RequiredBy:  req.RequiredBy,
		PatientInfo: req.PatientInfo,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.publish(r, events.EventRequestCreated, created)
	writeJSON(w, http.StatusCreated, h.view(created))
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.svc.GetRequest(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(request))
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(r.URL.Query().Get("status"))
	requests, err := h.svc.ListRequests(r.Context(), status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views(requests))
}

func (h *Handler) urgentRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.UrgentRequests(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views(requests))
}

type fulfillReq struct {
	BankID        string  `json:"bank_id"`
	UnitsProvided int     `json:"units_provided"`
	Notes         *string `json:"notes,omitempty"`
}

func (h *Handler) fulfillRequest(w http.ResponseWriter, r *http.Request) {
	var req fulfillReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fulfilled, _, err := h.svc.FulfillRequest(r.Context(), chi.URLParam(r, "requestID"), req.BankID, req.UnitsProvided, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.publish(r, events.EventRequestFulfilled, fulfilled)
	writeJSON(w, http.StatusOK, h.view(fulfilled))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelRequest(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cancelled, _, err := h.svc.CancelRequest(r.Context(), chi.URLParam(r, "requestID"), req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.publish(r, events.EventRequestCancelled, cancelled)
	writeJSON(w, http.StatusOK, h.view(cancelled))
}

// publish emits a lifecycle event for a committed record. Delivery failures
// are logged, never surfaced: the transaction already committed.
func (h *Handler) publish(r *http.Request, eventType string, request domain.BloodRequest) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(r.Context(), eventType, request); err != nil {
		log.Printf("httpapi: publish %s for request %s: %v", eventType, request.ID, err)
	}
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes:
// validation 400, missing references 404, conflicts 409, transient
// infrastructure failures 503.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidBloodType),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidUrgency),
		errors.Is(err, domain.ErrCancelReasonRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrFacilityNotFound),
		errors.Is(err, domain.ErrBankNotFound),
		errors.Is(err, domain.ErrInventoryLineNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRequestAlreadyProcessed),
		errors.Is(err, domain.ErrInsufficientInventory):
		writeError(w, http.StatusConflict, err.Error())
	case domain.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	default:
		var violation domain.RuleViolationError
		if errors.As(err, &violation) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":      violation.Error(),
				"violations": violation.Result.Violations,
			})
			return
		}
		log.Printf("httpapi: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
