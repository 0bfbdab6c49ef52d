package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/civic-events/app/cfg"
	"github.com/lysyi3m/civic-events/app/database"
	"github.com/lysyi3m/civic-events/app/tasks"
)

const defaultRunLimit = 20

func NewHandler(provider tasks.SnapshotProvider, locales LocaleLister, runs database.RunStore,
	scheduler tasks.TaskSchedulerInterface, stats Stats, window DayWindow) *Handler {
	return &Handler{
		provider:  provider,
		generator: NewGenerator(cfg.GetVersion()),
		locales:   locales,
		runs:      runs,
		scheduler: scheduler,
		stats:     stats,
		window:    window,
	}
}

func (h *Handler) GetEvents(c *gin.Context) {
	days, ok := h.parseDays(c)
	if !ok {
		return
	}

	refresh, err := parseFlag(c.Query("refresh"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh parameter"})
		return
	}

	s, fromCache, err := h.provider.Get(c.Request.Context(), days, refresh)
	if err != nil {
		slog.Error("Snapshot unavailable", "days", days, "refresh", refresh, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Events are not available",
			"details": err.Error(),
		})
		return
	}

	c.Header("X-Snapshot-Key", s.Key)
	c.Header("X-Snapshot-Saved", s.SavedAt.Format(time.RFC3339))
	c.JSON(http.StatusOK, eventsResponse{Snapshot: s, FromCache: fromCache})
}

// GetEventsRSS serves the same snapshot as GetEvents as an RSS channel.
// It never forces a collection.
func (h *Handler) GetEventsRSS(c *gin.Context) {
	days, ok := h.parseDays(c)
	if !ok {
		return
	}

	s, _, err := h.provider.Get(c.Request.Context(), days, false)
	if err != nil {
		slog.Error("Snapshot unavailable", "days", days, "error", err)
		c.Status(http.StatusServiceUnavailable)
		return
	}

	rss, err := h.generator.Run(s, selfLink(c))
	if err != nil {
		slog.Error("RSS generation error", "key", s.Key, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(s.Items)))
	c.Header("X-Last-Updated", s.SavedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetSources(c *gin.Context) {
	locales := h.locales.All()

	sources := make([]sourceInfo, 0, len(locales))
	for _, loc := range locales {
		sources = append(sources, sourceInfo{
			Key:      loc.Key,
			Label:    loc.Label,
			Enabled:  loc.Settings.Enabled,
			Kind:     loc.Collector.Kind,
			Renderer: loc.Settings.Renderer,
			URL:      loc.URL,
			Center:   loc.Center,
			RadiusKm: loc.RadiusKm,
			Tags:     loc.Tags,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) GetRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run history is not configured"})
		return
	}

	limit := defaultRunLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(n, 200)
	}

	runs, err := h.runs.LatestRuns(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "latest_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	now := time.Now()
	health := map[string]interface{}{
		"timestamp": now.In(time.Local).Format(time.RFC3339),
		"sources":   len(h.locales.All()),
	}

	if h.stats.Geocode != nil {
		hits, misses := h.stats.Geocode.Stats()
		health["geocode_cache"] = map[string]interface{}{
			"entries": h.stats.Geocode.Len(),
			"hits":    hits,
			"misses":  misses,
		}
	}

	if h.stats.Facilities != nil {
		addresses, points := h.stats.Facilities.Counts()
		health["facilities"] = map[string]interface{}{
			"addresses": addresses,
			"points":    points,
		}
	}

	if h.stats.Snapshots != nil {
		health["snapshot_store"] = h.stats.Snapshots.Health(c.Request.Context())
	}

	if s := h.provider.Peek(h.window.Default); s != nil {
		health["snapshot"] = map[string]interface{}{
			"key":      s.Key,
			"saved_at": s.SavedAt.Format(time.RFC3339),
			"age":      s.Age(now).Round(time.Second).String(),
			"count":    s.Count,
		}
	}

	c.JSON(http.StatusOK, health)
}

// APIRefresh queues a forced collection for a window. Without a scheduler
// the collection runs inside the request.
func (h *Handler) APIRefresh(c *gin.Context) {
	days, ok := h.parseDays(c)
	if !ok {
		return
	}

	if h.scheduler == nil {
		s, _, err := h.provider.Get(c.Request.Context(), days, true)
		if err != nil {
			slog.Error("Refresh failed", "days", days, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Refresh failed",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"key":     s.Key,
			"count":   s.Count,
		})
		return
	}

	task := tasks.NewRefreshSnapshotTask(h.provider, days, true)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing refresh task", "days", days, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue refresh task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Refresh task enqueued successfully",
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
			"key":  task.Source,
		},
	})
}

// parseDays reads the days query parameter, writing a 400 response when it
// is not an integer. Missing means the default window.
func (h *Handler) parseDays(c *gin.Context) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return h.window.Clamp(h.window.Default), true
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
		return 0, false
	}
	return h.window.Clamp(days), true
}

func selfLink(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}

func parseFlag(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
