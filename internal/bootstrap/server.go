package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	swaggerDoc      = "flightbooking.swagger.json"
	healthInterval  = 10 * time.Second
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Check reports whether a dependency is usable. A failing check marks the
// service NOT_SERVING on the gRPC health endpoint and on /healthz.
type Check func(ctx context.Context) error

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
	conn       *grpc.ClientConn
	checks     map[string]Check
	logger     *log.Logger
}

// Run starts the gRPC health server and the HTTP server (REST API, /healthz
// gateway, /metrics, swagger) and blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, api http.Handler, checks map[string]Check, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	s, err := newServers(ctx, cfg, api, checks, logger)
	if err != nil {
		return err
	}
	defer s.conn.Close()

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go s.watchHealth(healthCtx)

	logger.Printf("bootstrap: http on %s, grpc on %s", cfg.HTTP.Address, cfg.GRPC.Address)

	select {
	case err := <-errCh:
		s.grpcServer.Stop()
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(ctx context.Context, cfg *config.Config, api http.Handler, checks map[string]Check, logger *log.Logger) (*Servers, error) {
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	conn, err := grpc.NewClient(cfg.GRPC.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial gRPC %s: %w", cfg.GRPC.Address, err)
	}
	gateway := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))

	s := &Servers{
		grpcServer: grpcSrv,
		health:     healthSrv,
		conn:       conn,
		checks:     checks,
		logger:     logger,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewHandler(cfg.HTTP, api, gateway),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.refresh(ctx)
	return s, nil
}

// NewHandler mounts the REST API at the root next to /healthz, /metrics and the swagger UI.
func NewHandler(cfg config.HTTPConfig, api, gateway http.Handler) http.Handler {
	metrics.Register()

	handler := http.NewServeMux()
	handler.Handle("/", api)
	handler.Handle("/healthz", gateway)
	handler.Handle("/metrics", metrics.Handler())

	if cfg.SwaggerDir != "" {
		fs := http.FileServer(http.Dir(cfg.SwaggerDir))
		handler.Handle("/swagger/", http.StripPrefix("/swagger/", fs))
		handler.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/swagger/"+swaggerDoc)))
	}
	return handler
}

func (s *Servers) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Servers) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			s.logger.Printf("bootstrap: health check %s: %v", name, err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}
