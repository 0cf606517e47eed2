package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/delivery"
	"github.com/kailas-cloud/taskpilot/internal/logger"
)

// Stream handles GET /ui/chat/stream/{clientId}. It holds a push subscription
// open and writes one "message" event per delivered message until the client
// disconnects, a newer stream replaces it, or the subscription times out.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	var clientID string
	err := runtime.BindStyledParameterWithOptions("simple", "clientId", chi.URLParam(r, "clientId"), &clientID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter clientId: "+err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "streaming unsupported")
		return
	}

	log := logger.FromContext(r.Context()).With(zap.String("client_id", clientID))

	sub := s.mailboxes.Subscribe(clientID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-sub.Messages():
			if !open {
				logStreamEnd(log, sub.Err())
				return
			}
			if err := writeEvent(w, msg); err != nil {
				log.Debug("Stream write failed, message requeued", zap.Error(err))
				sub.Requeue(msg, err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				sub.Fail(err)
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, msg delivery.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func logStreamEnd(log *zap.Logger, err error) {
	switch {
	case err == nil:
		log.Debug("Stream replaced")
	case errors.Is(err, delivery.ErrStreamTimeout), errors.Is(err, delivery.ErrShutdown):
		log.Debug("Stream closed", zap.Error(err))
	default:
		log.Warn("Stream terminated", zap.Error(err))
	}
}
