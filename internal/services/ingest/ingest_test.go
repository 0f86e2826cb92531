package ingest

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"sentinel-engine-go/internal/config"
	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	events []models.DetectionEvent
	errFor map[string]error
}

func (f *fakeSubmitter) Submit(_ context.Context, evt models.DetectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor[evt.CameraID]; err != nil {
		return err
	}
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeSubmitter) received() []models.DetectionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DetectionEvent(nil), f.events...)
}

func newTestHandler() (*Handler, *fakeSubmitter, *observability.Counters) {
	sub := &fakeSubmitter{errFor: map[string]error{
		"cam_off":  engineerrors.ErrCameraInactive,
		"cam_busy": engineerrors.ErrBackpressure,
	}}
	counters := observability.NewCounters()
	return NewHandler(&config.Config{}, sub, counters), sub, counters
}

func TestHandlePayload_SingleObject(t *testing.T) {
	h, sub, _ := newTestHandler()

	results, err := h.HandlePayload(context.Background(), "test",
		[]byte(`{"camera_id":"cam_1","track_id":7,"timestamp":"2024-03-01T10:00:00Z","x":5,"y":5,"confidence":0.9}`))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusAccepted, results[0].Status)
	assert.Equal(t, "7", results[0].TrackID)

	got := sub.received()
	require.Len(t, got, 1)
	assert.Equal(t, "cam_1", got[0].CameraID)
	assert.Equal(t, models.Point{X: 5, Y: 5}, got[0].Position)
}

func TestHandlePayload_ArrayItemsAreIndependent(t *testing.T) {
	h, sub, counters := newTestHandler()

	payload := `[
		{"camera_id":"cam_1","track_id":"t1","timestamp":"2024-03-01T10:00:00Z","x":1,"y":1,"confidence":0.9},
		{"camera_id":"cam_1","timestamp":"2024-03-01T10:00:00Z","x":1,"y":1,"confidence":0.9},
		{"camera_id":"cam_off","track_id":"t2","timestamp":"2024-03-01T10:00:00Z","x":1,"y":1,"confidence":0.9},
		{"camera_id":"cam_busy","track_id":"t3","timestamp":"2024-03-01T10:00:00Z","x":1,"y":1,"confidence":0.9}
	]`
	results, err := h.HandlePayload(context.Background(), "test", []byte(payload))
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, StatusAccepted, results[0].Status)
	assert.Equal(t, StatusMalformed, results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, StatusInactive, results[2].Status)
	assert.Equal(t, StatusDropped, results[3].Status)

	assert.Equal(t, Summary{Accepted: 1, Malformed: 1, Inactive: 1, Dropped: 1}, Summarize(results))
	assert.Len(t, sub.received(), 1)
	assert.Equal(t, int64(1), counters.Get(observability.EventsMalformed))
}

func TestHandlePayload_UndecodablePayload(t *testing.T) {
	h, sub, counters := newTestHandler()

	for _, payload := range []string{``, `   `, `[{"camera_id":`} {
		_, err := h.HandlePayload(context.Background(), "test", []byte(payload))
		assert.ErrorIs(t, err, engineerrors.ErrMalformedEvent, "payload %q", payload)
	}

	// a lone object that is not JSON is one malformed item
	results, err := h.HandlePayload(context.Background(), "test", []byte(`not json`))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusMalformed, results[0].Status)

	assert.Empty(t, sub.received())
	assert.Equal(t, int64(4), counters.Get(observability.EventsMalformed))
}

func TestNATSSubscriber_OnMessage(t *testing.T) {
	h, sub, _ := newTestHandler()
	s := NewNATSSubscriber(&config.Config{DetectionsSubject: "sentinel.detections.>"}, nil, h)

	s.onMessage("sentinel.detections.cam_1",
		[]byte(`{"camera_id":"cam_1","track_id":"t1","timestamp":"2024-03-01T10:00:00Z","x":1,"y":2,"confidence":0.5}`))
	s.onMessage("sentinel.detections.cam_1", []byte(`{broken`))

	require.Len(t, sub.received(), 1)
	assert.NoError(t, s.Stop())
}

type fakeMQTTMessage struct {
	topic   string
	payload []byte
}

func (m fakeMQTTMessage) Duplicate() bool   { return false }
func (m fakeMQTTMessage) Qos() byte         { return 1 }
func (m fakeMQTTMessage) Retained() bool    { return false }
func (m fakeMQTTMessage) Topic() string     { return m.topic }
func (m fakeMQTTMessage) MessageID() uint16 { return 1 }
func (m fakeMQTTMessage) Payload() []byte   { return m.payload }
func (m fakeMQTTMessage) Ack()              {}

func TestMQTTSubscriber_OnMessage(t *testing.T) {
	h, sub, _ := newTestHandler()
	cfg := &config.Config{
		MQTTBrokerURL:       "tcp://127.0.0.1:1",
		MQTTClientID:        "sentinel-test",
		MQTTDetectionsTopic: "sentinel/detections/#",
		MQTTQoS:             7,
	}
	s := NewMQTTSubscriber(cfg, h)
	assert.Equal(t, byte(1), s.qos)
	assert.False(t, s.IsConnected())

	s.onMessage(nil, fakeMQTTMessage{
		topic:   "sentinel/detections/cam_1",
		payload: []byte(`[{"camera_id":"cam_1","track_id":"t1","timestamp":"2024-03-01T10:00:00Z","x":1,"y":2,"confidence":0.5}]`),
	})
	require.Len(t, sub.received(), 1)
	assert.Equal(t, "t1", sub.received()[0].TrackID)
}

func startBufconnServer(t *testing.T, h *Handler) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(&config.Config{}, h)
	go srv.Serve(lis)
	t.Cleanup(func() { srv.Stop(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_StreamDetections(t *testing.T) {
	h, sub, _ := newTestHandler()
	conn := startBufconnServer(t, h)

	stream, err := NewDetectionIngestClient(conn).StreamDetections(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Send(mustStruct(t, map[string]interface{}{
		"camera_id": "cam_1", "track_id": 12, "timestamp": "2024-03-01T10:00:00Z", "x": 3.5, "y": 4, "confidence": 0.8,
	})))
	require.NoError(t, stream.Send(mustStruct(t, map[string]interface{}{
		"camera_id": "cam_1", "timestamp": "2024-03-01T10:00:00Z", "x": 3.5, "y": 4, "confidence": 0.8,
	})))
	require.NoError(t, stream.Send(mustStruct(t, map[string]interface{}{
		"camera_id": "cam_off", "track_id": "t2", "timestamp": "2024-03-01T10:00:01Z", "x": 1, "y": 1, "confidence": 0.8,
	})))

	reply, err := stream.CloseAndRecv()
	require.NoError(t, err)
	fields := reply.AsMap()
	assert.Equal(t, float64(1), fields["accepted"])
	assert.Equal(t, float64(1), fields["malformed"])
	assert.Equal(t, float64(1), fields["inactive_camera"])
	assert.Equal(t, float64(0), fields["dropped"])

	got := sub.received()
	require.Len(t, got, 1)
	assert.Equal(t, "12", got[0].TrackID)
	assert.Equal(t, 3.5, got[0].Position.X)
}

func TestGRPC_Health(t *testing.T) {
	h, _, _ := newTestHandler()
	conn := startBufconnServer(t, h)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: DetectionIngestServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
