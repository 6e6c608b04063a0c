package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/rlplanner/internal/monitoring"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "rlplanner.StateImageService"
	// CodecName is the content-subtype clients must use for this service.
	CodecName = "json"

	generateImageMethod = "/" + ServiceName + "/GenerateImage"
)

var grpcLogf = monitoring.Prefixed("grpc")

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries Request and Response as JSON over gRPC so the service
// needs no generated message types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }

// StateImageServer is the server side of StateImageService.
type StateImageServer interface {
	GenerateImage(ctx context.Context, req *Request) (*Response, error)
}

var stateImageServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StateImageServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GenerateImage",
			Handler:    generateImageHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rlplanner/state_image",
}

func generateImageHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateImageServer).GenerateImage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: generateImageMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StateImageServer).GenerateImage(ctx, req.(*Request))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcHandler adapts a Generator to StateImageServer, translating errors
// into gRPC status codes.
type grpcHandler struct {
	gen *Generator
}

// Ensure grpcHandler implements the gRPC interface.
var _ StateImageServer = (*grpcHandler)(nil)

func (h *grpcHandler) GenerateImage(ctx context.Context, req *Request) (*Response, error) {
	resp, err := h.gen.Generate(ctx, req)
	if err != nil {
		return nil, grpcStatus(err)
	}
	return resp, nil
}

func grpcStatus(err error) error {
	switch Classify(err) {
	case KindInvalid:
		return status.Error(codes.InvalidArgument, err.Error())
	case KindUnavailable:
		return status.Error(codes.FailedPrecondition, err.Error())
	case KindCanceled:
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// RegisterGRPC registers StateImageService backed by gen on s.
func RegisterGRPC(s grpc.ServiceRegistrar, gen *Generator) {
	s.RegisterService(&stateImageServiceDesc, &grpcHandler{gen: gen})
}

// GRPCClient calls StateImageService.
type GRPCClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient wraps an established connection.
func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// GenerateImage requests one state image. Server errors come back as gRPC
// status errors; use status.Code to inspect them.
func (c *GRPCClient) GenerateImage(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, generateImageMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCServer owns a grpc.Server exposing StateImageService and the
// standard health service.
type GRPCServer struct {
	addr   string
	server *grpc.Server
	health *health.Server

	running  atomic.Bool
	listener net.Listener
	wg       sync.WaitGroup
}

// maxMsgSize covers the largest grids a sane config produces as JSON.
const maxMsgSize = 16 * 1024 * 1024 // 16 MB

// NewGRPCServer creates a server for gen that will listen on addr.
func NewGRPCServer(addr string, gen *Generator) *GRPCServer {
	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterGRPC(s, gen)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &GRPCServer{addr: addr, server: s, health: hs}
}

// Start binds addr and serves in the background.
func (s *GRPCServer) Start() error {
	if s.running.Load() {
		return fmt.Errorf("grpc server already running")
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener in the background.
func (s *GRPCServer) Serve(lis net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("grpc server already running")
	}
	s.listener = lis

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		grpcLogf("listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			grpcLogf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *GRPCServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop marks the service NOT_SERVING and drains in-flight calls.
func (s *GRPCServer) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.health.Shutdown()
	s.server.GracefulStop()
	s.wg.Wait()
	grpcLogf("server stopped")
}
