package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jonathan/resume-builder/internal/livepreview"
	"github.com/jonathan/resume-builder/internal/types"
	"go.uber.org/zap"
)

// Preview message types.
const (
	previewUpdate  = "update"
	previewRefresh = "refresh"
	previewState   = "state"
	previewError   = "error"
)

// previewMessage is sent by the client.
type previewMessage struct {
	Type       string         `json:"type"`
	FormData   types.FormData `json:"formData"`
	TemplateID string         `json:"templateId"`
}

// previewStateMessage is pushed to the client after every state change.
type previewStateMessage struct {
	Type string `json:"type"`
	livepreview.PreviewState
}

type previewErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handlePreviewSocket runs one live preview session over a websocket. The
// session owns a Coordinator; the renderer behind it is shared.
func (s *Server) handlePreviewSocket(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Live preview is not configured")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.originPatterns(),
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer conn.CloseNow() //nolint:errcheck
	conn.SetReadLimit(maxBodyBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Holds at most the newest state; older undelivered states are dropped.
	states := make(chan livepreview.PreviewState, 1)
	coord := livepreview.NewCoordinator(s.preview, livepreview.CoordinatorOptions{
		Debounce: s.debounce,
		Enabled:  true,
		Logger:   s.logger,
		OnChange: func(st livepreview.PreviewState) {
			select {
			case <-states:
			default:
			}
			select {
			case states <- st:
			default:
			}
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-states:
				if err := wsjson.Write(ctx, conn, previewStateMessage{Type: previewState, PreviewState: st}); err != nil {
					s.logger.Debug("preview write failed", zap.Error(err))
					cancel()
					return
				}
			}
		}
	}()

	coord.Start()
	s.readPreviewMessages(ctx, conn, coord)

	coord.Close()
	cancel()
	wg.Wait()
	conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck
}

func (s *Server) readPreviewMessages(ctx context.Context, conn *websocket.Conn, coord *livepreview.Coordinator) {
	for {
		var msg previewMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				s.logger.Debug("preview session closed")
			} else {
				s.logger.Warn("preview read failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case previewUpdate:
			coord.Update(msg.FormData, msg.TemplateID)
		case previewRefresh:
			coord.Refresh()
		default:
			if err := wsjson.Write(ctx, conn, previewErrorMessage{Type: previewError, Error: "unknown message type: " + msg.Type}); err != nil {
				return
			}
		}
	}
}

// originPatterns converts allowed origins to the host patterns the
// websocket handshake checks against.
func (s *Server) originPatterns() []string {
	patterns := make([]string, 0, len(s.origins))
	for origin := range s.origins {
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
