package server

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/observability"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "artistexchange.v1.Exchange"

const (
	callerMetadataKey         = "x-caller-id"
	idempotencyMetadataKey    = "x-idempotency-key"
	jsonCodecName             = "json"
	defaultHTTPShutdownPeriod = 5 * time.Second
)

// jsonCodec carries the wire types as JSON. Clients select it with
// grpc.CallContentSubtype("json").
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GRPCServer serves the exchange over gRPC and over an HTTP/JSON gateway.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	healthServer  *health.Server
	grpcAddr      string
	httpAddr      string
	service       ExchangeServer
	healthChecker *observability.HealthChecker
	limiter       *RateLimiter
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// ServerDeps holds everything the services need.
type ServerDeps struct {
	Exchange      *core.Exchange
	Metadata      MetadataReader
	HealthChecker *observability.HealthChecker
	// Limiter is optional; nil disables rate limiting.
	Limiter *RateLimiter
	Metrics *observability.Metrics
}

// NewGRPCServer creates the gRPC server with the exchange, health and
// reflection services registered.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	s := &GRPCServer{
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: deps.HealthChecker,
		limiter:       deps.Limiter,
		metrics:       deps.Metrics,
		logger:        observability.NewLogger("server"),
	}
	s.service = &exchangeService{x: deps.Exchange, metadata: deps.Metadata, logger: s.logger}

	interceptors := []grpc.UnaryServerInterceptor{}
	if s.limiter != nil {
		interceptors = append(interceptors, s.limiter.UnaryInterceptor())
	}
	interceptors = append(interceptors, s.observeUnary, callerUnary)

	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	s.grpcServer.RegisterService(&exchangeServiceDesc, s.service)

	// NOT_SERVING until state is restored
	s.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.healthServer)
	s.healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(s.grpcServer)

	return s
}

// SetServing flips the gRPC health status for the exchange service.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus(ServiceName, st)
	s.healthServer.SetServingStatus("", st)
}

// Serve runs the gRPC server on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// StartHTTPGateway starts the HTTP/JSON gateway (blocking).
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	handler, err := s.HTTPHandler()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultHTTPShutdownPeriod)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpAddr).Msg("HTTP gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ============================================================================
// Interceptors
// ============================================================================

// observeUnary maps domain errors to status codes and records metrics.
func (s *GRPCServer) observeUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	method := info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]

	resp, err := handler(ctx, req)
	err = toStatus(err)
	code := status.Code(err)

	if s.metrics != nil {
		s.metrics.APIRequests.WithLabelValues(method, code.String()).Inc()
		s.metrics.APIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	if code == codes.Internal {
		s.logger.Error().Err(err).Str("method", method).Msg("request failed")
	}
	return resp, err
}

// callerUnary attaches the caller identity and idempotency key carried in
// request metadata.
func callerUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return handler(ctx, req)
	}
	if v := md.Get(callerMetadataKey); len(v) > 0 {
		caller, err := uuid.Parse(v[0])
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid %s: %v", callerMetadataKey, err)
		}
		ctx = core.WithCaller(ctx, caller)
	}
	if v := md.Get(idempotencyMetadataKey); len(v) > 0 && v[0] != "" {
		ctx = core.WithIdempotencyKey(ctx, v[0])
	}
	return handler(ctx, req)
}

// ============================================================================
// Service descriptor
// ============================================================================

var exchangeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateToken", ExchangeServer.CreateToken),
		unary("Transfer", ExchangeServer.Transfer),
		unary("Approve", ExchangeServer.Approve),
		unary("TransferFrom", ExchangeServer.TransferFrom),
		unary("Deposit", ExchangeServer.Deposit),
		unary("Withdraw", ExchangeServer.Withdraw),
		unary("AddLiquidity", ExchangeServer.AddLiquidity),
		unary("BuyTokens", ExchangeServer.BuyTokens),
		unary("SellTokens", ExchangeServer.SellTokens),
		unary("CreateArtist", ExchangeServer.CreateArtist),
		unary("BuyShares", ExchangeServer.BuyShares),
		unary("SellShares", ExchangeServer.SellShares),
		unary("GetAllTokens", ExchangeServer.GetAllTokens),
		unary("GetTokenInfo", ExchangeServer.GetTokenInfo),
		unary("GetTokenBySymbol", ExchangeServer.GetTokenBySymbol),
		unary("GetLiquidity", ExchangeServer.GetLiquidity),
		unary("GetPrice", ExchangeServer.GetPrice),
		unary("GetTokenPurchaseAmount", ExchangeServer.GetTokenPurchaseAmount),
		unary("GetTokenSaleAmount", ExchangeServer.GetTokenSaleAmount),
		unary("GetArtist", ExchangeServer.GetArtist),
		unary("GetCurrentPrice", ExchangeServer.GetCurrentPrice),
		unary("GetShareSaleAmount", ExchangeServer.GetShareSaleAmount),
		unary("BalanceOf", ExchangeServer.BalanceOf),
		unary("Allowance", ExchangeServer.Allowance),
		unary("Quote", ExchangeServer.Quote),
		unary("GetStatus", ExchangeServer.GetStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "artistexchange/v1/exchange.proto",
}

// MethodPath returns the full gRPC method path for name.
func MethodPath(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ExchangeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPath(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*Req))
			})
		},
	}
}
