package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
)

// DetectionIngestServiceName is the fully qualified gRPC service name.
const DetectionIngestServiceName = "sentinel.ingest.v1.DetectionIngest"

// Detection events travel as google.protobuf.Struct messages carrying the
// same fields as the JSON schema; the stream ends with one summary Struct.

// DetectionIngestServer is the server API of DetectionIngest.
type DetectionIngestServer interface {
	StreamDetections(DetectionIngest_StreamDetectionsServer) error
}

type DetectionIngest_StreamDetectionsServer interface {
	SendAndClose(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type detectionIngestStreamDetectionsServer struct {
	grpc.ServerStream
}

func (x *detectionIngestStreamDetectionsServer) SendAndClose(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *detectionIngestStreamDetectionsServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func streamDetectionsHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(DetectionIngestServer).StreamDetections(&detectionIngestStreamDetectionsServer{stream})
}

var DetectionIngestServiceDesc = grpc.ServiceDesc{
	ServiceName: DetectionIngestServiceName,
	HandlerType: (*DetectionIngestServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamDetections",
			Handler:       streamDetectionsHandler,
			ClientStreams: true,
		},
	},
	Metadata: "sentinel/ingest/v1/ingest.proto",
}

func RegisterDetectionIngestServer(s grpc.ServiceRegistrar, srv DetectionIngestServer) {
	s.RegisterService(&DetectionIngestServiceDesc, srv)
}

// DetectionIngestClient is the client API of DetectionIngest.
type DetectionIngestClient interface {
	StreamDetections(ctx context.Context, opts ...grpc.CallOption) (DetectionIngest_StreamDetectionsClient, error)
}

type DetectionIngest_StreamDetectionsClient interface {
	Send(*structpb.Struct) error
	CloseAndRecv() (*structpb.Struct, error)
	grpc.ClientStream
}

type detectionIngestClient struct {
	cc grpc.ClientConnInterface
}

func NewDetectionIngestClient(cc grpc.ClientConnInterface) DetectionIngestClient {
	return &detectionIngestClient{cc}
}

func (c *detectionIngestClient) StreamDetections(ctx context.Context, opts ...grpc.CallOption) (DetectionIngest_StreamDetectionsClient, error) {
	stream, err := c.cc.NewStream(ctx, &DetectionIngestServiceDesc.Streams[0], "/"+DetectionIngestServiceName+"/StreamDetections", opts...)
	if err != nil {
		return nil, err
	}
	return &detectionIngestStreamDetectionsClient{stream}, nil
}

type detectionIngestStreamDetectionsClient struct {
	grpc.ClientStream
}

func (x *detectionIngestStreamDetectionsClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *detectionIngestStreamDetectionsClient) CloseAndRecv() (*structpb.Struct, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// GRPCServer serves DetectionIngest and the standard health service.
type GRPCServer struct {
	cfg     *config.Config
	handler *Handler
	server  *grpc.Server
	health  *health.Server
	logger  zerolog.Logger
}

func NewGRPCServer(cfg *config.Config, handler *Handler) *GRPCServer {
	s := &GRPCServer{
		cfg:     cfg,
		handler: handler,
		server:  grpc.NewServer(),
		health:  health.NewServer(),
		logger:  logging.NewServiceLogger(cfg, "ingest-grpc"),
	}
	RegisterDetectionIngestServer(s.server, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus(DetectionIngestServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// StreamDetections handles one client stream. Each message is one event;
// malformed messages are counted in the summary and the stream continues.
func (s *GRPCServer) StreamDetections(stream DetectionIngest_StreamDetectionsServer) error {
	ctx := stream.Context()
	var sum Summary

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return status.FromContextError(ctx.Err()).Err()
			}
			return err
		}

		data, err := protojson.Marshal(msg)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to re-encode message: %v", err)
		}
		results, err := s.handler.HandlePayload(ctx, "grpc", data)
		if err != nil {
			sum.Malformed++
			continue
		}
		add := Summarize(results)
		sum.Accepted += add.Accepted
		sum.Malformed += add.Malformed
		sum.Inactive += add.Inactive
		sum.Dropped += add.Dropped
	}

	s.logger.Debug().
		Int("accepted", sum.Accepted).
		Int("malformed", sum.Malformed).
		Int("dropped", sum.Dropped).
		Msg("Detection stream closed")

	reply, err := structpb.NewStruct(map[string]interface{}{
		"accepted":        sum.Accepted,
		"malformed":       sum.Malformed,
		"inactive_camera": sum.Inactive,
		"dropped":         sum.Dropped,
	})
	if err != nil {
		return status.Errorf(codes.Internal, "failed to build summary: %v", err)
	}
	return stream.SendAndClose(reply)
}

// Serve blocks serving on lis.
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC ingest server listening")
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gRPC server: %w", err)
	}
	return nil
}

// ListenAndServe listens on GRPC_PORT.
func (s *GRPCServer) ListenAndServe() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port %d: %w", s.cfg.GRPCPort, err)
	}
	return s.Serve(lis)
}

// Stop marks the service not serving and stops gracefully, forcing the stop
// when ctx ends first.
func (s *GRPCServer) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	case <-time.After(10 * time.Second):
		s.server.Stop()
	}
	s.logger.Info().Msg("gRPC ingest server stopped")
}
