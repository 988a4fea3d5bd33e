package httpx

import (
	"net/http"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/ws"
)

// streamWS upgrades to a websocket subscribed to topicFn(project_id). The
// read loop only detects disconnects; clients never send data.
func (r *Router) streamWS(topicFn func(string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if _, ok := authInfoFromContext(req.Context()); !ok {
			r.logger.Error("auth context missing for websocket", "path", req.URL.Path)
			writeError(w, http.StatusInternalServerError, "authorization context missing")
			return
		}
		projectID := req.URL.Query().Get("project_id")
		if projectID == "" {
			writeError(w, http.StatusBadRequest, "project_id query parameter required")
			return
		}
		conn, err := r.upgrader.Upgrade(w, req, nil)
		if err != nil {
			r.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		topic := topicFn(projectID)
		client := ws.NewClient(conn, r.logger)
		r.hub.Register(topic, client)
		r.trackStream("websocket", 1)
		go func() {
			defer func() {
				r.hub.Unregister(topic, client)
				client.Close()
				r.trackStream("websocket", -1)
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}

func (r *Router) handleDeploymentEvents(w http.ResponseWriter, req *http.Request) {
	projectID := req.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id query parameter required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	client := ws.NewSSEClient(w, flusher, r.logger)
	topic := ws.DeploymentTopic(projectID)
	r.hub.Register(topic, client)
	r.trackStream("sse", 1)
	defer func() {
		r.hub.Unregister(topic, client)
		client.Close()
		r.trackStream("sse", -1)
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
