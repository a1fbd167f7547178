package handler

import (
	"net/http"

	"finmate/internal/domain"
	"finmate/internal/service"
)

type CohortHandler struct {
	cohortService *service.CohortService
}

func NewCohortHandler(cohortService *service.CohortService) *CohortHandler {
	return &CohortHandler{cohortService: cohortService}
}

type RebuildCohortsRequest struct {
	Month string `json:"month,omitempty"`
}

type CohortResponse struct {
	ID        int64        `json:"id"`
	Position  int          `json:"position"`
	MinAmount string       `json:"min_amount"`
	MaxAmount *string      `json:"max_amount"`
	Range     string       `json:"range"`
	Period    domain.Month `json:"period"`
}

func toCohortResponses(cohorts []domain.Cohort) []CohortResponse {
	out := make([]CohortResponse, 0, len(cohorts))
	for i := range cohorts {
		c := &cohorts[i]
		resp := CohortResponse{
			ID:        c.ID,
			Position:  c.Position,
			MinAmount: c.MinAmount.String(),
			Range:     domain.RangeText(c),
			Period:    c.Period,
		}
		if c.MaxAmount.Valid {
			maxAmount := c.MaxAmount.Decimal.String()
			resp.MaxAmount = &maxAmount
		}
		out = append(out, resp)
	}
	return out
}

func (h *CohortHandler) List(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.cohortService.CurrentBands(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCohortResponses(cohorts))
}

// Rebuild runs an on-demand rebuild. Without a month it uses the last
// completed month.
func (h *CohortHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req RebuildCohortsRequest
	if r.ContentLength != 0 {
		if appErr := decodeJSON(r, &req); appErr != nil {
			writeError(w, appErr)
			return
		}
	}

	var (
		result *service.RebuildResult
		err    error
	)
	if req.Month == "" {
		result, err = h.cohortService.RebuildPrevious(r.Context())
	} else {
		month, appErr := parseMonth(req.Month, domain.Month{})
		if appErr != nil {
			writeError(w, appErr)
			return
		}
		result, err = h.cohortService.Rebuild(r.Context(), month)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":       result.Period,
		"active_users": result.ActiveUsers,
		"reassigned":   result.Reassigned,
		"retired":      result.Retired,
		"bands":        toCohortResponses(result.Bands),
	})
}
