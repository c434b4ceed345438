package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/session"
	"github.com/threadforge/threadforge/internal/social"
)

// ConnectHandler starts the OAuth handshake and redirects the browser to
// the authorization page.
func ConnectHandler(sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		authURL, err := ctx.Connector.BeginAuthorization()
		if err != nil {
			writeFault(w, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the handshake from the provider redirect.
// A replayed callback finds the side-channel entry gone and fails.
func CallbackHandler(sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		token := r.URL.Query().Get("oauth_token")
		verifier := r.URL.Query().Get("oauth_verifier")
		if token == "" || verifier == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Detail: "missing oauth_token or oauth_verifier"})
			return
		}

		if err := ctx.Connector.CompleteAuthorization(r.Context(), token, verifier); err != nil {
			writeFault(w, err)
			return
		}

		cred, _ := ctx.Connector.Credential()
		log.Printf("✅ Connected X account @%s", cred.Username)
		http.Redirect(w, r, "/?connected=1", http.StatusFound)
	}
}

// DisconnectHandler drops the social credential. Always succeeds.
func DisconnectHandler(sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}
		ctx.Connector.Disconnect()
		writeJSON(w, http.StatusOK, map[string]string{"state": string(ctx.Connector.State())})
	}
}

type publishRequest struct {
	Lines []string `json:"lines" validate:"required,min=1"`
	Topic string   `json:"topic"`
	Tone  string   `json:"tone"`
}

// PublishHandler posts a thread and records the root artifact. Partial
// publishes report how far the chain got instead of failing outright.
func PublishHandler(sm *session.Manager, store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		var req publishRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeFault(w, err)
			return
		}

		result, pubErr := ctx.Connector.Publish(r.Context(), req.Lines)
		if result.RootID != "" {
			if err := store.RecordPublishedArtifact(ctx.Identity(), result.RootID, req.Topic, req.Tone); err != nil {
				log.Printf("⚠️ Failed to record artifact: %v", err)
			}
		}
		if pubErr != nil && result.Posted == 0 {
			writeFault(w, pubErr)
			return
		}

		status := http.StatusOK
		payload := map[string]interface{}{"result": result}
		if pubErr != nil {
			// Partial success: the count is the contract, not an exception.
			status = http.StatusMultiStatus
			payload["error"] = pubErr.Error()
		}
		writeJSON(w, status, payload)
	}
}

// MetricsFetcher adapts a session's connector to the analytics refresh.
func MetricsFetcher(conn *social.Connector) analytics.FetchFunc {
	return func(ctx context.Context, externalID string) (analytics.ArtifactMetrics, error) {
		m, err := conn.FetchMetrics(ctx, externalID)
		if err != nil {
			return analytics.ArtifactMetrics{}, err
		}
		return analytics.ArtifactMetrics{
			Likes:     int(m.Likes),
			Retweets:  int(m.Retweets),
			Replies:   int(m.Replies),
			Views:     int(m.Views),
			Bookmarks: int(m.Bookmarks),
		}, nil
	}
}
