package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/middleware"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/sse"
)

const eventSnapshot = "snapshot"

// recentSource is the part of the access log the live feed replays on connect.
type recentSource interface {
	Recent(ctx context.Context, limit int, since *time.Time) ([]model.RecentAccess, error)
}

// AccessLogStreamHandler pushes access log entries and code requests to the back
// office as server-sent events.
type AccessLogStreamHandler struct {
	broker *sse.Broker
	recent recentSource
}

// Listeners counts admin dashboards currently attached to the live feed.
func (h *AccessLogStreamHandler) Listeners() int {
	return h.broker.ClientCount(sse.TopicAdmin)
}

func NewAccessLogStreamHandler(broker *sse.Broker, recent recentSource) *AccessLogStreamHandler {
	return &AccessLogStreamHandler{
		broker: broker,
		recent: recent,
	}
}

func (h *AccessLogStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetAdminSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("Session requise"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(sse.TopicAdmin)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("sessionId", session.ID).
		Msg("access log stream opened")

	ctx := r.Context()

	if err := h.sendSnapshot(ctx, w, flusher); err != nil {
		log.Error().Err(err).Msg("failed to send access log snapshot")
	}

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("sessionId", session.ID).
				Msg("access log stream closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("sessionId", session.ID).
				Msg("access log stream closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("sessionId", session.ID).
					Msg("heartbeat failed, closing stream")
				return
			}
			flusher.Flush()
		}
	}
}

// sendSnapshot replays the newest entries so the feed is never empty on open.
func (h *AccessLogStreamHandler) sendSnapshot(ctx context.Context, w http.ResponseWriter, flusher http.Flusher) error {
	entries, err := h.recent.Recent(ctx, DefaultRecentLimit, nil)
	if err != nil {
		return err
	}
	return h.sendEvent(w, flusher, eventSnapshot, map[string]any{"logs": entries})
}

func (h *AccessLogStreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *AccessLogStreamHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
