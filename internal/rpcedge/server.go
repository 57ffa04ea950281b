// Package rpcedge is the thin internal gRPC service fronting the core
// engines for the (out-of-scope, §6) HTTP/RPC edge — analogous to the
// teacher's internal/grpc package fronting its ledger service, retargeted
// from ledger queries to task/escrow/trust/dispute/ledger operations. The
// edge's wire contract (proto definitions, auth, rate limiting at the
// perimeter) is explicitly out of scope; this package owns only the
// server lifecycle and the facade every future handler would call into.
package rpcedge

import (
	"context"
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hustlexp/hustlexp-core/internal/capability"
	"github.com/hustlexp/hustlexp-core/internal/dispute"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/ledger"
	"github.com/hustlexp/hustlexp-core/internal/payment"
	"github.com/hustlexp/hustlexp-core/internal/task"
	"github.com/hustlexp/hustlexp-core/internal/trust"
)

// Facade bundles every engine operation handlers registered against the
// gRPC server are allowed to call. It exists so a handler package can
// depend on one small surface instead of importing every engine package
// directly.
type Facade struct {
	Task       *task.Engine
	Escrow     *escrow.Engine
	Trust      *trust.Engine
	Payment    *payment.Engine
	Dispute    *dispute.Engine
	Ledger     *ledger.Engine
	Capability *capability.Engine
}

// ServerConfig holds configuration for the gRPC server.
type ServerConfig struct {
	Address        string
	MaxRecvMsgSize int
	MaxSendMsgSize int
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        "127.0.0.1:50061",
		MaxRecvMsgSize: 4 * 1024 * 1024,
		MaxSendMsgSize: 4 * 1024 * 1024,
	}
}

func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}
	if c.MaxRecvMsgSize <= 0 {
		return errors.New("max_recv_msg_size must be positive")
	}
	if c.MaxSendMsgSize <= 0 {
		return errors.New("max_send_msg_size must be positive")
	}
	return nil
}

// Server wraps a *grpc.Server with the facade and lifecycle management the
// teacher's internal/grpc.Server also provides.
type Server struct {
	mu         sync.RWMutex
	grpcServer *grpc.Server
	health     *health.Server
	facade     *Facade
	config     *ServerConfig
	listener   net.Listener
	running    bool
}

// NewServer creates a gRPC server wired to facade. Business handlers are
// registered by future edge-specific code against GetGRPCServer(); this
// constructor itself only registers the standard health-check service so
// load balancers and orchestrators have something to probe immediately.
func NewServer(cfg *ServerConfig, facade *Facade) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
	)
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)

	return &Server{
		grpcServer: grpcServer,
		health:     healthSrv,
		facade:     facade,
		config:     cfg,
	}, nil
}

// Start listens and serves, blocking until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.mu.Unlock()

	return s.grpcServer.Serve(listener)
}

// Stop gracefully stops the server, waiting for in-flight RPCs to finish.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	s.running = false
}

// Address returns the address the server is listening on, or "" if not running.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetGRPCServer exposes the underlying *grpc.Server so future generated
// service stubs can be registered against it.
func (s *Server) GetGRPCServer() *grpc.Server { return s.grpcServer }

// Facade returns the engine bundle handlers are registered against.
func (s *Server) Facade() *Facade { return s.facade }
