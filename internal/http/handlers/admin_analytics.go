package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

// JourneyLister returns every stored journey.
type JourneyLister interface {
	ListJourneys(ctx context.Context) ([]*conversion.Journey, error)
}

// ReportArchiver stores a report and returns where it was put.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, r conversion.Report) (string, error)
}

// AdminAnalyticsHandler serves the conversion report.
type AdminAnalyticsHandler struct {
	journeys JourneyLister
	archiver ReportArchiver
	now      func() time.Time
	logger   *logging.Logger
}

// NewAdminAnalyticsHandler creates the handler. archiver may be nil when no
// report bucket is configured.
func NewAdminAnalyticsHandler(journeys JourneyLister, archiver ReportArchiver, logger *logging.Logger) *AdminAnalyticsHandler {
	if journeys == nil {
		panic("handlers: journeys cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAnalyticsHandler{journeys: journeys, archiver: archiver, now: time.Now, logger: logger}
}

// ReportResponse wraps the report with its archive location, if any.
type ReportResponse struct {
	Report     conversion.Report `json:"report"`
	ArchiveKey string            `json:"archiveKey,omitempty"`
}

// GetReport handles GET /admin/analytics/report?timeframe=7d|30d|90d[&archive=true].
func (h *AdminAnalyticsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	tf := conversion.ParseTimeframe(r.URL.Query().Get("timeframe"))
	archive, _ := strconv.ParseBool(r.URL.Query().Get("archive"))
	if archive && h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	journeys, err := h.journeys.ListJourneys(r.Context())
	if err != nil {
		h.logger.Error("failed to list journeys", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load journeys")
		return
	}

	resp := ReportResponse{Report: conversion.BuildReport(journeys, tf, h.now().UTC())}
	if archive {
		key, err := h.archiver.ArchiveReport(r.Context(), resp.Report)
		if err != nil {
			h.logger.Error("failed to archive report", "timeframe", tf, "error", err)
			writeError(w, http.StatusBadGateway, "failed to archive report")
			return
		}
		resp.ArchiveKey = key
	}
	writeJSON(w, http.StatusOK, resp)
}
