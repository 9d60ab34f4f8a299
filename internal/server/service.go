package server

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ingestion"
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"ArtistExchange/internal/persistence"
	"ArtistExchange/internal/registry"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// ExchangeServer is the operation surface served over gRPC and HTTP.
type ExchangeServer interface {
	CreateToken(context.Context, *CreateTokenRequest) (*CreateTokenResponse, error)
	Transfer(context.Context, *TransferRequest) (*Empty, error)
	Approve(context.Context, *ApproveRequest) (*Empty, error)
	TransferFrom(context.Context, *TransferFromRequest) (*Empty, error)
	Deposit(context.Context, *DepositRequest) (*Empty, error)
	Withdraw(context.Context, *WithdrawRequest) (*Empty, error)
	AddLiquidity(context.Context, *AddLiquidityRequest) (*AddLiquidityResponse, error)
	BuyTokens(context.Context, *BuyTokensRequest) (*BuyTokensResponse, error)
	SellTokens(context.Context, *SellTokensRequest) (*SellTokensResponse, error)
	CreateArtist(context.Context, *CreateArtistRequest) (*Empty, error)
	BuyShares(context.Context, *BuySharesRequest) (*BuySharesResponse, error)
	SellShares(context.Context, *SellSharesRequest) (*SellSharesResponse, error)

	GetAllTokens(context.Context, *Empty) (*ListTokensResponse, error)
	GetTokenInfo(context.Context, *TokenRequest) (*TokenSummary, error)
	GetTokenBySymbol(context.Context, *SymbolRequest) (*CreateTokenResponse, error)
	GetLiquidity(context.Context, *TokenRequest) (*LiquidityResponse, error)
	GetPrice(context.Context, *TokenRequest) (*PriceResponse, error)
	GetTokenPurchaseAmount(context.Context, *TokenQuoteRequest) (*AmountResponse, error)
	GetTokenSaleAmount(context.Context, *TokenQuoteRequest) (*AmountResponse, error)
	GetArtist(context.Context, *ArtistRequest) (*ArtistResponse, error)
	GetCurrentPrice(context.Context, *ArtistRequest) (*PriceResponse, error)
	GetShareSaleAmount(context.Context, *ShareQuoteRequest) (*AmountResponse, error)
	BalanceOf(context.Context, *BalanceRequest) (*AmountResponse, error)
	Allowance(context.Context, *AllowanceRequest) (*AmountResponse, error)
	Quote(context.Context, *QuoteRequest) (*AmountResponse, error)
	GetStatus(context.Context, *Empty) (*StatusResponse, error)
}

// MetadataReader resolves artist listings for token summaries.
// *persistence.MetadataStore implements it.
type MetadataReader interface {
	Get(ctx context.Context, asset ledger.AssetID) (*persistence.ArtistMetadata, error)
	List(ctx context.Context, assets []ledger.AssetID) (map[ledger.AssetID]persistence.ArtistMetadata, error)
}

// exchangeService adapts wire requests onto the facade. Errors come back
// as domain errors; the transport maps them to codes.
type exchangeService struct {
	x        *core.Exchange
	metadata MetadataReader
	logger   zerolog.Logger
}

var _ ExchangeServer = (*exchangeService)(nil)

func (s *exchangeService) CreateToken(ctx context.Context, req *CreateTokenRequest) (*CreateTokenResponse, error) {
	supply, err := parseAmount("total_supply", req.TotalSupply)
	if err != nil {
		return nil, err
	}
	id, err := s.x.CreateToken(ctx, req.Name, req.Symbol, supply)
	if err != nil {
		return nil, err
	}
	return &CreateTokenResponse{AssetID: id}, nil
}

func (s *exchangeService) Transfer(ctx context.Context, req *TransferRequest) (*Empty, error) {
	to, err := parseAccount("to", req.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return &Empty{}, s.x.Transfer(ctx, req.AssetID, to, amount)
}

func (s *exchangeService) Approve(ctx context.Context, req *ApproveRequest) (*Empty, error) {
	spender, err := parseAccount("spender", req.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return &Empty{}, s.x.Approve(ctx, req.AssetID, spender, amount)
}

func (s *exchangeService) TransferFrom(ctx context.Context, req *TransferFromRequest) (*Empty, error) {
	from, err := parseAccount("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return &Empty{}, s.x.TransferFrom(ctx, req.AssetID, from, to, amount)
}

func (s *exchangeService) Deposit(ctx context.Context, req *DepositRequest) (*Empty, error) {
	account, err := parseAccount("account", req.Account)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return &Empty{}, s.x.Deposit(ctx, account, amount)
}

func (s *exchangeService) Withdraw(ctx context.Context, req *WithdrawRequest) (*Empty, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return &Empty{}, s.x.Withdraw(ctx, amount)
}

func (s *exchangeService) AddLiquidity(ctx context.Context, req *AddLiquidityRequest) (*AddLiquidityResponse, error) {
	native, err := parseAmount("native_amount", req.NativeAmount)
	if err != nil {
		return nil, err
	}
	tokens, err := s.x.AddLiquidity(ctx, req.AssetID, native)
	if err != nil {
		return nil, err
	}
	return &AddLiquidityResponse{TokensAdded: formatAmount(tokens)}, nil
}

func (s *exchangeService) BuyTokens(ctx context.Context, req *BuyTokensRequest) (*BuyTokensResponse, error) {
	nativeIn, err := parseAmount("native_in", req.NativeIn)
	if err != nil {
		return nil, err
	}
	minOut, err := parseOptionalAmount("min_tokens_out", req.MinTokensOut)
	if err != nil {
		return nil, err
	}
	out, err := s.x.BuyTokens(ctx, req.AssetID, minOut, nativeIn)
	if err != nil {
		return nil, err
	}
	return &BuyTokensResponse{TokensOut: formatAmount(out)}, nil
}

func (s *exchangeService) SellTokens(ctx context.Context, req *SellTokensRequest) (*SellTokensResponse, error) {
	tokens, err := parseAmount("token_amount", req.TokenAmount)
	if err != nil {
		return nil, err
	}
	minOut, err := parseOptionalAmount("min_native_out", req.MinNativeOut)
	if err != nil {
		return nil, err
	}
	out, err := s.x.SellTokens(ctx, req.AssetID, tokens, minOut)
	if err != nil {
		return nil, err
	}
	return &SellTokensResponse{NativeOut: formatAmount(out)}, nil
}

func (s *exchangeService) CreateArtist(ctx context.Context, req *CreateArtistRequest) (*Empty, error) {
	base, err := parseAmount("base_price", req.BasePrice)
	if err != nil {
		return nil, err
	}
	return &Empty{}, s.x.CreateArtist(ctx, req.ArtistID, base, req.TotalSupply)
}

func (s *exchangeService) BuyShares(ctx context.Context, req *BuySharesRequest) (*BuySharesResponse, error) {
	payment, err := parseAmount("payment", req.Payment)
	if err != nil {
		return nil, err
	}
	p, err := s.x.BuyShares(ctx, req.ArtistID, req.Amount, payment)
	if err != nil {
		return nil, err
	}
	return &BuySharesResponse{
		Price:  formatAmount(p.Price),
		Cost:   formatAmount(p.Cost),
		Refund: formatAmount(p.Refund),
	}, nil
}

func (s *exchangeService) SellShares(ctx context.Context, req *SellSharesRequest) (*SellSharesResponse, error) {
	paid, err := s.x.SellShares(ctx, req.ArtistID, req.Amount)
	if err != nil {
		return nil, err
	}
	return &SellSharesResponse{Payout: formatAmount(paid)}, nil
}

// ============================================================================
// Reads
// ============================================================================

func (s *exchangeService) GetAllTokens(ctx context.Context, _ *Empty) (*ListTokensResponse, error) {
	assets := s.x.GetAllTokens()
	resp := &ListTokensResponse{Tokens: make([]TokenSummary, 0, len(assets))}

	var listings map[ledger.AssetID]persistence.ArtistMetadata
	if s.metadata != nil && len(assets) > 0 {
		ids := make([]ledger.AssetID, len(assets))
		for i, a := range assets {
			ids[i] = a.ID
		}
		var err error
		if listings, err = s.metadata.List(ctx, ids); err != nil {
			// listings are decoration; the registry is authoritative
			s.logger.Warn().Err(err).Int("tokens", len(ids)).Msg("artist metadata unavailable")
		}
	}

	for _, a := range assets {
		summary := summarize(a)
		if m, ok := listings[a.ID]; ok {
			summary.Artist = &m
		}
		resp.Tokens = append(resp.Tokens, summary)
	}
	return resp, nil
}

func (s *exchangeService) GetTokenInfo(ctx context.Context, req *TokenRequest) (*TokenSummary, error) {
	a, err := s.x.GetTokenInfo(req.AssetID)
	if err != nil {
		return nil, err
	}
	summary := summarize(a)
	if s.metadata != nil {
		m, err := s.metadata.Get(ctx, a.ID)
		switch {
		case err == nil:
			summary.Artist = m
		case !errors.Is(err, persistence.ErrMetadataNotFound):
			s.logger.Warn().Err(err).Uint32("asset_id", uint32(a.ID)).Msg("artist metadata unavailable")
		}
	}
	return &summary, nil
}

func (s *exchangeService) GetTokenBySymbol(_ context.Context, req *SymbolRequest) (*CreateTokenResponse, error) {
	id, err := s.x.GetTokenBySymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	return &CreateTokenResponse{AssetID: id}, nil
}

func (s *exchangeService) GetLiquidity(_ context.Context, req *TokenRequest) (*LiquidityResponse, error) {
	tokens, native, err := s.x.GetLiquidity(req.AssetID)
	if err != nil {
		return nil, err
	}
	return &LiquidityResponse{TokenReserve: formatAmount(tokens), NativeReserve: formatAmount(native)}, nil
}

func (s *exchangeService) GetPrice(_ context.Context, req *TokenRequest) (*PriceResponse, error) {
	p, err := s.x.GetPrice(req.AssetID)
	if err != nil {
		return nil, err
	}
	return &PriceResponse{Price: formatAmount(p)}, nil
}

func (s *exchangeService) GetTokenPurchaseAmount(_ context.Context, req *TokenQuoteRequest) (*AmountResponse, error) {
	in, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	out, err := s.x.GetTokenPurchaseAmount(req.AssetID, in)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: formatAmount(out)}, nil
}

func (s *exchangeService) GetTokenSaleAmount(_ context.Context, req *TokenQuoteRequest) (*AmountResponse, error) {
	in, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	out, err := s.x.GetTokenSaleAmount(req.AssetID, in)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: formatAmount(out)}, nil
}

func (s *exchangeService) GetArtist(_ context.Context, req *ArtistRequest) (*ArtistResponse, error) {
	a, err := s.x.GetArtist(req.ArtistID)
	if err != nil {
		return nil, err
	}
	price, err := s.x.GetCurrentPrice(req.ArtistID)
	if err != nil {
		return nil, err
	}
	return &ArtistResponse{
		ArtistID:      a.ID,
		BasePrice:     formatAmount(a.BasePrice),
		TotalSupply:   a.TotalSupply,
		CurrentSupply: a.CurrentSupply,
		Reserve:       formatAmount(a.Reserve),
		CurrentPrice:  formatAmount(price),
	}, nil
}

func (s *exchangeService) GetCurrentPrice(_ context.Context, req *ArtistRequest) (*PriceResponse, error) {
	p, err := s.x.GetCurrentPrice(req.ArtistID)
	if err != nil {
		return nil, err
	}
	return &PriceResponse{Price: formatAmount(p)}, nil
}

func (s *exchangeService) GetShareSaleAmount(_ context.Context, req *ShareQuoteRequest) (*AmountResponse, error) {
	out, err := s.x.GetShareSaleAmount(req.ArtistID, req.Amount)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: formatAmount(out)}, nil
}

func (s *exchangeService) BalanceOf(_ context.Context, req *BalanceRequest) (*AmountResponse, error) {
	account, err := parseAccount("account", req.Account)
	if err != nil {
		return nil, err
	}

	var ref core.Ref
	switch req.Kind {
	case "native", "":
		ref = core.NativeRef()
	case "token":
		if req.ID > uint64(^ledger.AssetID(0)) {
			return nil, fmt.Errorf("asset %d: %w", req.ID, errs.ErrUnknownAsset)
		}
		ref = core.TokenRef(ledger.AssetID(req.ID))
	case "artist":
		// share balances are whole units
		ref = core.ArtistRef(ledger.ArtistID(req.ID))
		return &AmountResponse{Amount: s.x.BalanceOf(account, ref).Dec()}, nil
	default:
		return nil, fmt.Errorf("balance kind %q: %w", req.Kind, errs.ErrInvalidInput)
	}
	return &AmountResponse{Amount: formatAmount(s.x.BalanceOf(account, ref))}, nil
}

func (s *exchangeService) Allowance(_ context.Context, req *AllowanceRequest) (*AmountResponse, error) {
	owner, err := parseAccount("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAccount("spender", req.Spender)
	if err != nil {
		return nil, err
	}
	v, err := s.x.Allowance(req.AssetID, owner, spender)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: formatAmount(v)}, nil
}

func (s *exchangeService) Quote(_ context.Context, req *QuoteRequest) (*AmountResponse, error) {
	kind, ok := core.ParseEngineKind(req.Engine)
	if !ok {
		return nil, fmt.Errorf("engine %q: %w", req.Engine, errs.ErrInvalidInput)
	}

	cfg := fpmath.NativeConfig
	if kind == core.EngineBondingCurve {
		cfg = fpmath.ShareConfig
	}
	amount, err := fpmath.ParseUnits(req.Amount, cfg)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}

	out, err := s.x.Quote(kind, req.ID, amount)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: formatAmount(out)}, nil
}

func (s *exchangeService) GetStatus(_ context.Context, _ *Empty) (*StatusResponse, error) {
	hash := s.x.StateHash()
	return &StatusResponse{
		Sequence:  s.x.Sequence(),
		StateHash: hex.EncodeToString(hash[:]),
		Tokens:    len(s.x.GetAllTokens()),
	}, nil
}

// ============================================================================
// Helpers
// ============================================================================

func summarize(a registry.Asset) TokenSummary {
	return TokenSummary{
		AssetID:     a.ID,
		Name:        a.Name,
		Symbol:      a.Symbol,
		Creator:     a.Creator.String(),
		TotalSupply: formatAmount(a.TotalSupply),
		CreatedAtUs: a.CreatedAt,
	}
}

func parseAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%s is required: %w", field, errs.ErrInvalidAmount)
	}
	v, err := fpmath.ParseUnits(s, fpmath.NativeConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func parseOptionalAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount(field, s)
}

func parseAccount(field, s string) (uuid.UUID, error) {
	if s == ingestion.ExchangeSpender {
		return ledger.ExchangeAccount, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", field, s, errs.ErrInvalidInput)
	}
	return id, nil
}

func formatAmount(v *uint256.Int) string {
	return fpmath.FormatUnits(v, fpmath.NativeConfig)
}
