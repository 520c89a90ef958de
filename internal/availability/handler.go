package availability

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vivaclin/agenda-platform/internal/observability/metrics"
	"github.com/vivaclin/agenda-platform/internal/tenancy"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// Handler answers availability queries over HTTP.
type Handler struct {
	finder  SlotFinder
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(finder SlotFinder, m *metrics.SchedulingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{finder: finder, metrics: m, logger: logger}
}

// Query handles GET /availability?professional_id=&date=&duration_minutes=.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing clinic context", http.StatusBadRequest)
		return
	}

	professionalID, err := uuid.Parse(r.URL.Query().Get("professional_id"))
	if err != nil {
		http.Error(w, "invalid professional_id", http.StatusBadRequest)
		return
	}

	date, err := time.Parse(time.DateOnly, r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	duration := 0
	if raw := r.URL.Query().Get("duration_minutes"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration < 0 {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	resp, err := h.finder.Slots(r.Context(), Request{
		ClinicID:        clinicID,
		ProfessionalID:  professionalID,
		Date:            date,
		DurationMinutes: duration,
	})
	h.metrics.ObserveAvailability(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("availability query failed", "error", err,
			"clinic_id", clinicID, "professional_id", professionalID)
		http.Error(w, "failed to compute availability", http.StatusInternalServerError)
		return
	}
	if resp.Slots == nil {
		resp.Slots = []Window{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
