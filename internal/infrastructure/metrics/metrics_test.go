package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRecord(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.MessageSent("text")
	c.MessageSent("text")
	c.EventDropped("message.created")
	c.NotificationCreated("new_message")

	assert.Equal(t, float64(1), testutil.ToFloat64(c.Connections))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.MessagesSent.WithLabelValues("text")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.EventsDropped.WithLabelValues("message.created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.NotificationsCreated.WithLabelValues("new_message")))
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ConnectionOpened()
		c.MessageSent("image")
		c.EventDropped("typing.changed")
	})
}

func TestHandlerExposesChatMetrics(t *testing.T) {
	c := New(prometheus.NewRegistry())
	c.MessageSent("file")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chat_messages_sent_total{kind="file"} 1`)
}
