package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

const serviceName = "Flex Living Reviews API"

type Handlers struct {
	Reviews   *app.ReviewService
	Approvals *app.ApprovalService
	Now       func() time.Time
}

type listMeta struct {
	UsingMockData bool      `json:"usingMockData"`
	Count         int       `json:"count"`
	Timestamp     time.Time `json:"timestamp"`
}

type listResponse struct {
	Success bool                     `json:"success"`
	Meta    listMeta                 `json:"meta"`
	Data    []domain.CanonicalReview `json:"data"`
	Stats   *domain.StatisticsReport `json:"stats"`
}

type approveResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    app.ApprovalResult `json:"data"`
}

func (s *Server) MountHandlers(h *Handlers) {
	if h.Now == nil {
		h.Now = time.Now
	}
	s.mux.Get("/health", h.health)
	s.mux.Route("/api/reviews", func(r chi.Router) {
		r.Get("/properties", h.properties)
		r.Post("/approve", h.approve)
		r.Get("/{provider}", h.list)
		r.Get("/{provider}/public", h.public)
		r.Get("/{provider}/{id}", h.get)
	})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.Now().UTC(),
		"service":   serviceName,
	})
}

func sourceParam(r *http.Request) (domain.Source, error) {
	return domain.ParseSource(chi.URLParam(r, "provider"))
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	src, err := sourceParam(r)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch reviews")
		return
	}
	q, err := readListParams(r.URL.Query()).listQuery(src)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch reviews")
		return
	}
	res, err := h.Reviews.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch reviews")
		return
	}
	h.writeList(w, res)
}

// public is the guest-facing listing: approved reviews only, newest first by default.
func (h *Handlers) public(w http.ResponseWriter, r *http.Request) {
	src, err := sourceParam(r)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch reviews")
		return
	}
	p := readListParams(r.URL.Query())
	if err := validate.Struct(p); err != nil {
		writeServiceError(w, validationError(err), "Failed to fetch reviews")
		return
	}
	f, err := p.filter()
	if err != nil {
		writeServiceError(w, err, "Failed to fetch reviews")
		return
	}
	res, err := h.Reviews.Public(r.Context(), src, f)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch reviews")
		return
	}
	h.writeList(w, res)
}

func (h *Handlers) writeList(w http.ResponseWriter, res app.ListResult) {
	data := res.Reviews
	if data == nil {
		data = []domain.CanonicalReview{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success: true,
		Meta:    listMeta{UsingMockData: res.UsingMockData, Count: len(data), Timestamp: h.Now().UTC()},
		Data:    data,
		Stats:   res.Stats,
	})
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	src, err := sourceParam(r)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch review")
		return
	}
	id := domain.ParseReviewID(chi.URLParam(r, "id"))
	if id.IsZero() {
		writeError(w, http.StatusBadRequest, "id is required", "")
		return
	}
	rv, err := h.Reviews.Get(r.Context(), src, id)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch review")
		return
	}
	writeWithETag(w, r, map[string]any{"success": true, "data": rv})
}

func (h *Handlers) properties(w http.ResponseWriter, r *http.Request) {
	src := domain.SourceHostaway
	if p := r.URL.Query().Get("provider"); p != "" {
		s, err := domain.ParseSource(p)
		if err != nil {
			writeServiceError(w, err, "Failed to fetch properties")
			return
		}
		src = s
	}
	props, mock, err := h.Reviews.Properties(r.Context(), src)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch properties")
		return
	}
	if props == nil {
		props = []domain.PropertySummary{}
	}
	writeWithETag(w, r, map[string]any{
		"success": true,
		"meta":    map[string]any{"usingMockData": mock, "count": len(props)},
		"data":    props,
	})
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	req, err := readApproveRequest(w, r)
	if err != nil {
		writeServiceError(w, err, "Failed to update approval status")
		return
	}
	res, err := h.Approvals.Apply(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to update approval status")
		return
	}

	verb := "unapproved"
	if res.Approved {
		verb = "approved"
	}
	writeJSON(w, http.StatusOK, approveResponse{
		Success: true,
		Message: fmt.Sprintf("%d reviews %s", len(res.ReviewIDs), verb),
		Data:    res,
	})
}
