package handlers

import (
	"net/http"
	"strconv"

	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/session"
)

// SummaryHandler serves the dashboard rollup for the session's identity.
func SummaryHandler(sm *session.Manager, store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		summary, err := store.Summarize(ctx.Identity())
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// HistoryHandler serves the capped generation history, newest first.
func HistoryHandler(sm *session.Manager, store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		history, err := store.History(ctx.Identity())
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
	}
}

// ActivityHandler serves a contiguous per-day series for charting.
func ActivityHandler(sm *session.Manager, store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		days := 7
		if v := r.URL.Query().Get("days"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 90 {
				days = n
			}
		}

		series, err := store.ActivitySeries(ctx.Identity(), days)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"activity": series})
	}
}

// ArtifactsHandler lists published posts with their last known metrics.
func ArtifactsHandler(sm *session.Manager, store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		artifacts, err := store.Artifacts(ctx.Identity())
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"artifacts": artifacts})
	}
}

// RefreshMetricsHandler re-reads engagement metrics through the session's
// connector. Individual fetch failures are skipped, not fatal.
func RefreshMetricsHandler(sm *session.Manager, store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		refreshed, skipped, err := store.RefreshMetrics(r.Context(), ctx.Identity(), MetricsFetcher(ctx.Connector))
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"refreshed": refreshed, "skipped": skipped})
	}
}

// ClearHandler wipes everything stored for the session's identity.
func ClearHandler(sm *session.Manager, store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		if err := store.Clear(ctx.Identity()); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}
