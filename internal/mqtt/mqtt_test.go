package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/observability/metrics"
	"github.com/classroll/rollcall/internal/session"
)

type message struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (f *fakeClient) Connect(context.Context) error { return nil }
func (f *fakeClient) IsConnected() bool             { return true }
func (f *fakeClient) Disconnect()                   {}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{topic: topic, payload: payload})
	return nil
}

func TestPublisherTopicsAndPayload(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	p := NewPublisher(fc, "school/room1")

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishSession(t.Context(), session.SessionEvent{
		SessionUUID: "b8d2c7c4-0000-4000-8000-000000000001",
		SessionID:   4,
		SubjectCode: "CS101",
		SectionName: "A",
		TeacherID:   "100",
		State:       session.StateSessionOpen,
		StartTime:   start,
	}))

	distance := 0.25
	require.NoError(t, p.PublishAttendance(t.Context(), session.AttendanceEvent{
		SessionID:    4,
		EnrollmentID: "2024001",
		Status:       "present",
		Distance:     &distance,
		MarkedAt:     start.Add(time.Minute),
	}))

	require.Len(t, fc.messages, 2)
	assert.Equal(t, "school/room1/sessions", fc.messages[0].topic)
	assert.Equal(t, "school/room1/attendance", fc.messages[1].topic)

	var sessionBody map[string]any
	require.NoError(t, json.Unmarshal(fc.messages[0].payload, &sessionBody))
	assert.Equal(t, "session_open", sessionBody["state"])
	assert.Equal(t, "CS101", sessionBody["subject_code"])
	assert.NotContains(t, sessionBody, "end_time")

	var attendanceBody map[string]any
	require.NoError(t, json.Unmarshal(fc.messages[1].payload, &attendanceBody))
	assert.Equal(t, "2024001", attendanceBody["enrollment_id"])
	assert.InDelta(t, 0.25, attendanceBody["distance"], 1e-12)
}

func TestPublisherDefaultPrefixAndFailure(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{err: errors.NewStd("broker gone")}
	p := NewPublisher(fc, "")

	err := p.PublishAttendance(t.Context(), session.AttendanceEvent{EnrollmentID: "1"})
	require.Error(t, err)
	assert.Equal(t, "rollcall", p.prefix)
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Main.Name = "room-101"
	settings.MQTT.Broker = "tcp://localhost:1883"
	settings.MQTT.Topic = "campus"
	settings.MQTT.Retain = true

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "room-101", cfg.ClientID)
	assert.Equal(t, "campus", cfg.Topic)
	assert.True(t, cfg.Retain)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)

	settings.MQTT.ClientID = "explicit"
	settings.MQTT.Topic = ""
	cfg = ConfigFromSettings(settings)
	assert.Equal(t, "explicit", cfg.ClientID)
	assert.Equal(t, "rollcall", cfg.Topic)
}

func TestClientRejectsInvalidBroker(t *testing.T) {
	t.Parallel()

	for _, broker := range []string{"", "://bad", "localhost-without-scheme"} {
		c := NewClient(Config{Broker: broker}, nil)
		err := c.Connect(t.Context())
		require.Error(t, err, broker)
		assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection), broker)
		assert.False(t, c.IsConnected())
		c.Disconnect()
	}
}

func TestClientConnectCooldown(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Broker: "://bad", ReconnectCooldown: time.Hour}, nil)
	require.Error(t, c.Connect(t.Context()))

	err := c.Connect(t.Context())
	require.Error(t, err)
	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "cooldown", ee.GetContext()["stage"])
}

func TestPublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewMQTTMetrics(registry)
	require.NoError(t, err)

	c := NewClient(Config{Broker: "tcp://127.0.0.1:1883"}, m)
	err = c.Publish(t.Context(), "rollcall/attendance", []byte("{}"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))

	metric := &dto.Metric{}
	require.NoError(t, m.Errors.WithLabelValues("publish").Write(metric))
	assert.InDelta(t, 1.0, metric.GetCounter().GetValue(), 1e-9)

	c.Disconnect()
	c.Disconnect()
}

func TestNewClientGeneratesID(t *testing.T) {
	t.Parallel()

	c, ok := NewClient(Config{}, nil).(*client)
	require.True(t, ok)
	assert.Regexp(t, `^rollcall-[0-9a-f]{8}$`, c.config.ClientID)
	assert.Equal(t, 10*time.Second, c.config.PublishTimeout)
}
