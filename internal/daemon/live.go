package daemon

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"camwatch/internal/display"
	"camwatch/internal/logging"
)

const (
	liveWriteWait      = 5 * time.Second
	liveDefaultWidth   = 1280
	liveDefaultHeight  = 720
	liveMaxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// handleLive streams the camera's display frames as binary JPEG messages. A
// message is sent only when the rendered frame changed since this viewer's
// previous message. Clients may send JSON
// view changes to steer the shared view.
func (s *apiServer) handleLive(w http.ResponseWriter, r *http.Request) {
	sess, err := s.daemon.Session(r.PathValue("name"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	vw, vh := viewport(r)
	if vw == 0 || vh == 0 {
		vw, vh = liveDefaultWidth, liveDefaultHeight
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(liveMaxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			var change ViewChange
			if err := conn.ReadJSON(&change); err != nil {
				return
			}
			_, _ = s.daemon.UpdateView(sess.Name(), change)
		}
	}()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	quality := s.daemon.cfg.Display.JPEGQuality
	var buf bytes.Buffer
	err = sess.Live(ctx, vw, vh, s.refresh, func(img *image.RGBA) error {
		buf.Reset()
		if err := display.EncodeJPEG(&buf, img, quality); err != nil {
			s.logger.Warn("live frame encode failed", logging.Error(err))
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
	})
	if err != nil {
		s.logger.Debug("live viewer disconnected", logging.Error(err))
	}
}
