// Package grpc exposes the simplification service over gRPC.
//
// The server carries the standard health service, optional reflection and a
// unary interceptor chain (recovery, request ID, logging, metrics). The
// Simplifier service uses well-known protobuf types only, so no generated
// code is needed on either side.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/sneharawat080/medsimplify/internal/config"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
)

const (
	defaultMsgSize  = 4 << 20
	defaultDrainFor = 10 * time.Second

	// MetadataRequestID carries the caller's request ID.
	MetadataRequestID = "x-request-id"
)

// Simplify calls are short and unary, so idle connections are recycled well
// before the load balancer's own timeouts.
func keepaliveParams() keepalive.ServerParameters {
	return keepalive.ServerParameters{
		MaxConnectionIdle:     5 * time.Minute,
		MaxConnectionAge:      20 * time.Minute,
		MaxConnectionAgeGrace: 10 * time.Second,
		Time:                  2 * time.Minute,
		Timeout:               5 * time.Second,
	}
}

// Option configures the Server.
type Option func(*Server)

func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGracefulTimeout bounds GracefulStop before falling back to Stop.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.drainFor = d
		}
	}
}

// Server wraps a grpc.Server with health reporting and graceful shutdown.
type Server struct {
	gs       *grpc.Server
	health   *health.Server
	cfg      config.GRPCConfig
	logger   logging.Logger
	metrics  *prometheus.AppMetrics
	drainFor time.Duration

	mu       sync.Mutex
	listener net.Listener
	started  bool
}

// NewServer assembles the server. It does not bind a port; call Start or
// Serve.
func NewServer(cfg config.GRPCConfig, opts ...Option) *Server {
	s := &Server{cfg: cfg, drainFor: defaultDrainFor}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	recv := cfg.MaxRecvMsgSize
	if recv <= 0 {
		recv = defaultMsgSize
	}

	s.gs = grpc.NewServer(
		grpc.MaxRecvMsgSize(recv),
		grpc.MaxSendMsgSize(defaultMsgSize),
		grpc.KeepaliveParams(keepaliveParams()),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 10 * time.Second, PermitWithoutStream: true}),
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(s.logger),
			requestIDUnaryInterceptor(),
			loggingUnaryInterceptor(s.logger),
			metricsUnaryInterceptor(s.metrics),
		),
	)

	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.gs, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if cfg.EnableReflection {
		reflection.Register(s.gs)
		s.logger.Debug("grpc reflection enabled")
	}
	return s
}

// RegisterService registers impl and marks it SERVING. Must be called before
// Start or Serve.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.gs.RegisterService(desc, impl)
	s.health.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("grpc service registered", logging.String("service", desc.ServiceName))
}

// Start listens on the configured port and serves until Stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("grpc: server already started")
	}
	s.started, s.listener = true, lis
	s.mu.Unlock()

	s.logger.Info("grpc listening", logging.String("address", lis.Addr().String()))
	err := s.gs.Serve(lis)
	if err == grpc.ErrServerStopped {
		return nil
	}
	return err
}

// Stop flips health to NOT_SERVING, drains in-flight calls, and hard-stops
// once the drain window or ctx runs out.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.health.Shutdown()
	drainCtx, cancel := context.WithTimeout(ctx, s.drainFor)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.gs.GracefulStop()
	}()

	select {
	case <-drained:
		s.logger.Info("grpc server drained")
	case <-drainCtx.Done():
		s.gs.Stop()
		s.logger.Warn("grpc drain window elapsed, connections closed",
			logging.Duration("drain_for", s.drainFor))
	}
	return nil
}

// Addr returns the bound address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func recoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// requestIDUnaryInterceptor takes the caller's x-request-id or mints one,
// stores it in the context and echoes it in the response header.
func requestIDUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(MetadataRequestID); len(v) > 0 && len(v[0]) <= 128 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(MetadataRequestID, id))
		return handler(logging.ContextWithRequestID(ctx, id), req)
	}
}

func loggingUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		fields := []logging.Field{
			logging.String("method", info.FullMethod),
			logging.Int64("duration_ms", time.Since(start).Milliseconds()),
			logging.String("code", code.String()),
		}
		l := logger.WithContext(ctx)
		switch code {
		case codes.OK:
			l.Info("grpc request", fields...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			l.Error("grpc request failed", fields...)
		default:
			l.Warn("grpc request rejected", fields...)
		}
		return resp, err
	}
}

func metricsUnaryInterceptor(m *prometheus.AppMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if m == nil {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		service, method := splitMethodName(info.FullMethod)
		prometheus.RecordGRPCRequest(m, service, method, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// splitMethodName turns "/pkg.Service/Method" into its two halves.
func splitMethodName(fullMethod string) (service, method string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return "unknown", service
	}
	return service, method
}
