package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/conwatch/conwatch/internal/metrics"
)

// writeDeadlineSlack is how far each write pushes the connection's write
// deadline out. A healthy stream keeps renewing it; a stalled peer trips it.
const writeDeadlineSlack = 30 * time.Second

// client is one SSE connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// write sends one raw frame and flushes it through to the peer.
func (c *client) write(frame string) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadlineSlack)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := io.WriteString(c.w, frame)
	if err != nil {
		return err
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	return nil
}

// sendEvent marshals v as a named event frame:
// "event: <name>\ndata: <json>\n\n".
func (c *client) sendEvent(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", name, err)
	}
	if err := c.write(fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)); err != nil {
		return fmt.Errorf("writing %s event: %w", name, err)
	}
	c.messagesSent++
	metrics.StreamEventsTotal.WithLabelValues(name).Inc()
	return nil
}

// sendKeepalive writes a comment frame so idle connections are not closed
// by proxies or the server's own timeouts.
func (c *client) sendKeepalive() error {
	if err := c.write(":\n\n"); err != nil {
		return fmt.Errorf("writing keepalive: %w", err)
	}
	return nil
}
