package server

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
)

const (
	callerHeader      = "X-Caller-Id"
	idempotencyHeader = "Idempotency-Key"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HTTPHandler builds the HTTP/JSON surface: the exchange routes on a
// gateway ServeMux plus the health endpoints.
func (s *GRPCServer) HTTPHandler() (http.Handler, error) {
	mux := runtime.NewServeMux()
	if err := s.registerRoutes(mux); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	var api http.Handler = mux
	if s.limiter != nil {
		api = s.limiter.Middleware(api)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	httpMux.Handle("/", api)
	return httpMux, nil
}

func (s *GRPCServer) registerRoutes(mux *runtime.ServeMux) error {
	svc := s.service
	get, post := http.MethodGet, http.MethodPost

	routes := []error{
		// registry
		handle(s, mux, get, "/v1/tokens", svc.GetAllTokens, nil),
		handle(s, mux, post, "/v1/tokens", svc.CreateToken, nil),
		handle(s, mux, get, "/v1/tokens/{asset_id}", svc.GetTokenInfo, func(req *TokenRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, get, "/v1/symbols/{symbol}", svc.GetTokenBySymbol, func(req *SymbolRequest, _ *http.Request, p map[string]string) error {
			req.Symbol = p["symbol"]
			return nil
		}),

		// ledger primitives
		handle(s, mux, post, "/v1/tokens/{asset_id}/transfer", svc.Transfer, func(req *TransferRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, post, "/v1/tokens/{asset_id}/approve", svc.Approve, func(req *ApproveRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, post, "/v1/tokens/{asset_id}/transfer_from", svc.TransferFrom, func(req *TransferFromRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, get, "/v1/tokens/{asset_id}/allowance", svc.Allowance, func(req *AllowanceRequest, r *http.Request, p map[string]string) (err error) {
			q := r.URL.Query()
			req.Owner, req.Spender = q.Get("owner"), q.Get("spender")
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, get, "/v1/accounts/{account}/balance", svc.BalanceOf, func(req *BalanceRequest, r *http.Request, p map[string]string) error {
			q := r.URL.Query()
			req.Account, req.Kind = p["account"], q.Get("kind")
			if id := q.Get("id"); id != "" {
				v, err := strconv.ParseUint(id, 10, 64)
				if err != nil {
					return fmt.Errorf("id %q: %w", id, errs.ErrInvalidInput)
				}
				req.ID = v
			}
			return nil
		}),
		handle(s, mux, post, "/v1/native/deposit", svc.Deposit, nil),
		handle(s, mux, post, "/v1/native/withdraw", svc.Withdraw, nil),

		// pools
		handle(s, mux, get, "/v1/pools/{asset_id}", svc.GetLiquidity, func(req *TokenRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, post, "/v1/pools/{asset_id}/liquidity", svc.AddLiquidity, func(req *AddLiquidityRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, get, "/v1/pools/{asset_id}/price", svc.GetPrice, func(req *TokenRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, get, "/v1/pools/{asset_id}/quote/buy", svc.GetTokenPurchaseAmount, bindTokenQuote),
		handle(s, mux, get, "/v1/pools/{asset_id}/quote/sell", svc.GetTokenSaleAmount, bindTokenQuote),
		handle(s, mux, post, "/v1/pools/{asset_id}/buy", svc.BuyTokens, func(req *BuyTokensRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),
		handle(s, mux, post, "/v1/pools/{asset_id}/sell", svc.SellTokens, func(req *SellTokensRequest, _ *http.Request, p map[string]string) (err error) {
			req.AssetID, err = pathAsset(p)
			return err
		}),

		// share markets
		handle(s, mux, post, "/v1/artists", svc.CreateArtist, nil),
		handle(s, mux, get, "/v1/artists/{artist_id}", svc.GetArtist, func(req *ArtistRequest, _ *http.Request, p map[string]string) (err error) {
			req.ArtistID, err = pathArtist(p)
			return err
		}),
		handle(s, mux, get, "/v1/artists/{artist_id}/price", svc.GetCurrentPrice, func(req *ArtistRequest, _ *http.Request, p map[string]string) (err error) {
			req.ArtistID, err = pathArtist(p)
			return err
		}),
		handle(s, mux, get, "/v1/artists/{artist_id}/quote/sell", svc.GetShareSaleAmount, func(req *ShareQuoteRequest, r *http.Request, p map[string]string) (err error) {
			if req.ArtistID, err = pathArtist(p); err != nil {
				return err
			}
			req.Amount, err = strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
			if err != nil {
				return fmt.Errorf("amount: %w", errs.ErrInvalidAmount)
			}
			return nil
		}),
		handle(s, mux, post, "/v1/artists/{artist_id}/buy", svc.BuyShares, func(req *BuySharesRequest, _ *http.Request, p map[string]string) (err error) {
			req.ArtistID, err = pathArtist(p)
			return err
		}),
		handle(s, mux, post, "/v1/artists/{artist_id}/sell", svc.SellShares, func(req *SellSharesRequest, _ *http.Request, p map[string]string) (err error) {
			req.ArtistID, err = pathArtist(p)
			return err
		}),

		handle(s, mux, get, "/v1/quote/{engine}/{id}", svc.Quote, func(req *QuoteRequest, r *http.Request, p map[string]string) (err error) {
			req.Engine, req.Amount = p["engine"], r.URL.Query().Get("amount")
			req.ID, err = strconv.ParseUint(p["id"], 10, 64)
			if err != nil {
				return fmt.Errorf("id %q: %w", p["id"], errs.ErrInvalidInput)
			}
			return nil
		}),
		handle(s, mux, get, "/v1/status", svc.GetStatus, nil),
	}
	return errors.Join(routes...)
}

// handle registers one JSON route. POST bodies decode into Req before bind
// fills path and query parameters.
func handle[Req, Resp any](
	s *GRPCServer,
	mux *runtime.ServeMux,
	method, pattern string,
	call func(context.Context, *Req) (*Resp, error),
	bind func(*Req, *http.Request, map[string]string) error,
) error {
	route := method + " " + pattern
	return mux.HandlePath(method, pattern, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		code := http.StatusOK
		defer func() { s.observeHTTP(route, code, start) }()

		fail := func(status int, err error) {
			code = status
			writeJSON(w, status, errorBody{Error: err.Error(), Kind: errs.KindOf(err).String()})
		}

		req := new(Req)
		if method != http.MethodGet {
			if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
				fail(http.StatusBadRequest, fmt.Errorf("malformed body: %v: %w", err, errs.ErrInvalidInput))
				return
			}
		}
		if bind != nil {
			if err := bind(req, r, params); err != nil {
				fail(httpStatus(err), err)
				return
			}
		}

		ctx, err := requestContext(r)
		if err != nil {
			fail(http.StatusBadRequest, err)
			return
		}

		resp, err := call(ctx, req)
		if err != nil {
			if st := httpStatus(err); st == http.StatusInternalServerError {
				s.logger.Error().Err(err).Str("route", route).Msg("request failed")
			}
			fail(httpStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// requestContext attaches the caller and idempotency key headers.
func requestContext(r *http.Request) (context.Context, error) {
	ctx := r.Context()
	if v := r.Header.Get(callerHeader); v != "" {
		caller, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s header: %w", callerHeader, errs.ErrInvalidInput)
		}
		ctx = core.WithCaller(ctx, caller)
	}
	if v := r.Header.Get(idempotencyHeader); v != "" {
		ctx = core.WithIdempotencyKey(ctx, v)
	}
	return ctx, nil
}

func (s *GRPCServer) observeHTTP(route string, code int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	s.metrics.APIDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func bindTokenQuote(req *TokenQuoteRequest, r *http.Request, p map[string]string) (err error) {
	req.Amount = r.URL.Query().Get("amount")
	req.AssetID, err = pathAsset(p)
	return err
}

func pathAsset(p map[string]string) (ledger.AssetID, error) {
	v, err := strconv.ParseUint(p["asset_id"], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("asset_id %q: %w", p["asset_id"], errs.ErrInvalidInput)
	}
	return ledger.AssetID(v), nil
}

func pathArtist(p map[string]string) (ledger.ArtistID, error) {
	v, err := strconv.ParseUint(p["artist_id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("artist_id %q: %w", p["artist_id"], errs.ErrInvalidInput)
	}
	return ledger.ArtistID(v), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
