package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Outcome is the typed result of an external collaborator call.
type Outcome string

const (
	OutcomeSucceeded            Outcome = "succeeded"
	OutcomeClassificationFailed Outcome = "classification_failed"
	OutcomeGenerationFailed     Outcome = "generation_failed"
)

type ReportStatus string

const (
	ReportCached   ReportStatus = "cached"
	ReportCreated  ReportStatus = "created"
	ReportUncached ReportStatus = "uncached"
)

const MissingSection = "데이터 부족"

// NarrativeInput is exactly what the narrator is shown.
type NarrativeInput struct {
	TwoMonthsAgo  MonthlySummary `json:"two_months_ago"`
	LastMonth     MonthlySummary `json:"last_month"`
	CohortAverage MonthlySummary `json:"cohort_average"`
	CohortRange   string         `json:"cohort_range"`
}

type Narrative struct {
	PastComparison  string `json:"section_past_comparison"`
	ClusterInfo     string `json:"section_cluster_info"`
	GroupComparison string `json:"section_group_comparison"`
}

// WithPlaceholders fills every blank section with MissingSection.
func (n Narrative) WithPlaceholders() Narrative {
	fill := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return MissingSection
		}
		return s
	}
	return Narrative{
		PastComparison:  fill(n.PastComparison),
		ClusterInfo:     fill(n.ClusterInfo),
		GroupComparison: fill(n.GroupComparison),
	}
}

// ReportPayload is persisted as the raw payload of a stored report.
type ReportPayload struct {
	Input     NarrativeInput `json:"input"`
	Narrative Narrative      `json:"narrative"`
	Outcome   Outcome        `json:"outcome"`
}

type StoredReport struct {
	ID              int64           `json:"report_id"`
	UserID          int64           `json:"user_id"`
	ReportMonth     Month           `json:"report_month"`
	RawPayload      json.RawMessage `json:"raw_payload"`
	RenderedText    string          `json:"report_text"`
	NarrativeStatus Outcome         `json:"narrative_status"`
	CreatedAt       time.Time       `json:"created_at"`
}

const reportDivider = "----------------------------------------"

// RenderReport lays out the narrative for the month pair (reportMonth-1, reportMonth).
func RenderReport(reportMonth Month, n Narrative) string {
	n = n.WithPlaceholders()
	prev := reportMonth.Prev()

	var b strings.Builder
	fmt.Fprintf(&b, "[%d월 소비 vs %d월 소비]\n", int(prev.Month), int(reportMonth.Month))
	b.WriteString(n.PastComparison)
	b.WriteString("\n\n")
	b.WriteString(reportDivider)
	b.WriteString("\n[속한 그룹과의 비교]\n")
	b.WriteString(n.ClusterInfo)
	b.WriteString("\n")
	b.WriteString(n.GroupComparison)
	return b.String()
}

type ReportRepository interface {
	GetReport(ctx context.Context, userID int64, month Month) (*StoredReport, error)
	CreateReport(ctx context.Context, report *StoredReport) error
}
