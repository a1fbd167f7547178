// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"finmate/internal/domain"
)

const (
	RoutingReportCreated  = "report.created"
	RoutingCohortsRebuilt = "cohorts.rebuilt"
)

// ReportCreatedMessage is emitted once per stored report.
type ReportCreatedMessage struct {
	UserID          int64          `json:"user_id"`
	ReportMonth     domain.Month   `json:"report_month"`
	ReportID        int64          `json:"report_id"`
	NarrativeStatus domain.Outcome `json:"narrative_status"`
	Timestamp       time.Time      `json:"timestamp"`
}

// CohortsRebuiltMessage is emitted after a band set is committed.
type CohortsRebuiltMessage struct {
	Period      domain.Month `json:"period"`
	BandCount   int          `json:"band_count"`
	ActiveUsers int          `json:"active_users"`
	Reassigned  int64        `json:"reassigned"`
	Timestamp   time.Time    `json:"timestamp"`
}

func (m *ReportCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *CohortsRebuiltMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Publisher is implemented by the AMQP client and by Noop.
type Publisher interface {
	PublishReportCreated(ctx context.Context, msg *ReportCreatedMessage) error
	PublishCohortsRebuilt(ctx context.Context, msg *CohortsRebuiltMessage) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) PublishReportCreated(context.Context, *ReportCreatedMessage) error   { return nil }
func (Noop) PublishCohortsRebuilt(context.Context, *CohortsRebuiltMessage) error { return nil }
func (Noop) Close() error                                                        { return nil }
