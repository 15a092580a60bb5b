package lab

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetlabhq/vetnotify/pkg/notify"
)

// Router exposes the lab workflow events and the operator surface for
// delivery records and preferences. Listing failed deliveries here is the
// only place send failures become visible.
func Router(svc *Service, storage notify.Storage) chi.Router {
	h := &handlers{svc: svc, storage: storage}

	r := chi.NewRouter()

	r.Post("/veterinarians", h.registerVeterinarian)
	r.Post("/samples", h.receiveSample)
	r.Post("/samples/{id}/reject", h.rejectSample)
	r.Post("/reports", h.finalizeReport)
	r.Post("/work-orders", h.issueWorkOrder)

	r.Get("/deliveries", h.listDeliveries)
	r.Get("/deliveries/{id}", h.getDelivery)

	r.Get("/preferences/{ref}", h.getPreference)
	r.Put("/preferences/{ref}", h.updatePreference)

	return r
}

type handlers struct {
	svc     *Service
	storage notify.Storage
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// respondResult distinguishes queued from preference-suppressed outcomes.
func respondResult(w http.ResponseWriter, result notify.Result) {
	if result.Skipped {
		respondJSON(w, http.StatusOK, map[string]any{"skipped": true})
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{
		"delivery_id": result.DeliveryID,
		"task_id":     result.TaskID,
	})
}

func statusForServiceError(err error) int {
	switch {
	case errors.Is(err, ErrSampleNotFound),
		errors.Is(err, ErrReportNotFound),
		errors.Is(err, ErrWorkOrderNotFound),
		errors.Is(err, ErrVeterinarianNotFound):
		return http.StatusNotFound
	case errors.Is(err, notify.ErrInvalidRecipient),
		errors.Is(err, notify.ErrInvalidContext):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) registerVeterinarian(w http.ResponseWriter, r *http.Request) {
	var vet Veterinarian
	if err := decodeJSON(r, &vet); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if vet.ID == "" {
		vet.ID = uuid.NewString()
	}

	h.svc.Store().PutVeterinarian(vet)
	respondJSON(w, http.StatusCreated, vet)
}

func (h *handlers) receiveSample(w http.ResponseWriter, r *http.Request) {
	var sample Sample
	if err := decodeJSON(r, &sample); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.ReceiveSample(r.Context(), sample)
	if err != nil {
		respondError(w, statusForServiceError(err), err)
		return
	}
	respondResult(w, result)
}

func (h *handlers) rejectSample(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.RejectSample(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		respondError(w, statusForServiceError(err), err)
		return
	}
	respondResult(w, result)
}

func (h *handlers) finalizeReport(w http.ResponseWriter, r *http.Request) {
	var report Report
	if err := decodeJSON(r, &report); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.FinalizeReport(r.Context(), report)
	if err != nil {
		respondError(w, statusForServiceError(err), err)
		return
	}
	respondResult(w, result)
}

func (h *handlers) issueWorkOrder(w http.ResponseWriter, r *http.Request) {
	var order WorkOrder
	if err := decodeJSON(r, &order); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.IssueWorkOrder(r.Context(), order)
	if err != nil {
		respondError(w, statusForServiceError(err), err)
		return
	}
	respondResult(w, result)
}

func (h *handlers) listDeliveries(w http.ResponseWriter, r *http.Request) {
	opts := notify.ListOptions{
		RecipientRef: r.URL.Query().Get("recipient_ref"),
		Limit:        queryInt(r, "limit"),
		Offset:       queryInt(r, "offset"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := notify.Status(s)
		opts.Status = &status
	}
	if t := r.URL.Query().Get("type"); t != "" {
		notifType := notify.Type(t)
		opts.Type = &notifType
	}

	deliveries, err := h.storage.ListDeliveries(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if deliveries == nil {
		deliveries = []notify.Delivery{}
	}
	respondJSON(w, http.StatusOK, deliveries)
}

func (h *handlers) getDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	delivery, err := h.storage.GetDelivery(r.Context(), id)
	if err != nil {
		if errors.Is(err, notify.ErrDeliveryNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, delivery)
}

func (h *handlers) getPreference(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	pref, err := h.storage.GetOrCreatePreference(r.Context(), ref, notify.DefaultPreference(ref))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, pref)
}

func (h *handlers) updatePreference(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	// Get-or-create first so updating an untouched recipient works.
	if _, err := h.storage.GetOrCreatePreference(r.Context(), ref, notify.DefaultPreference(ref)); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var pref notify.Preference
	if err := decodeJSON(r, &pref); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	pref.RecipientRef = ref

	if err := h.storage.UpdatePreference(r.Context(), pref); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	updated, err := h.storage.GetOrCreatePreference(r.Context(), ref, notify.DefaultPreference(ref))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
