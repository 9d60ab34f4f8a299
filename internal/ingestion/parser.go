package ingestion

import (
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// ExchangeSpender is the account alias producers use to approve the
// exchange custody account.
const ExchangeSpender = "exchange"

// ParseRawCommand converts a RawCommand (JSON bytes + command name) into a
// typed Command. Amounts travel as decimal strings in whole units and are
// scaled to 18-decimal base units here.
func ParseRawCommand(raw RawCommand, name string) (*Command, error) {
	var (
		op   Op
		meta metaJSON
		err  error
	)

	switch name {
	case "create_token":
		op, meta, err = parseCreateToken(raw.Data)
	case "transfer":
		op, meta, err = parseTransfer(raw.Data)
	case "approve":
		op, meta, err = parseApprove(raw.Data)
	case "transfer_from":
		op, meta, err = parseTransferFrom(raw.Data)
	case "deposit":
		op, meta, err = parseDeposit(raw.Data)
	case "withdraw":
		op, meta, err = parseWithdraw(raw.Data)
	case "add_liquidity":
		op, meta, err = parseAddLiquidity(raw.Data)
	case "buy_tokens":
		op, meta, err = parseBuyTokens(raw.Data)
	case "sell_tokens":
		op, meta, err = parseSellTokens(raw.Data)
	case "create_artist":
		op, meta, err = parseCreateArtist(raw.Data)
	case "buy_shares":
		op, meta, err = parseBuyShares(raw.Data)
	case "sell_shares":
		op, meta, err = parseSellShares(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command: %s", name)
	}
	if err != nil {
		return nil, err
	}

	m, err := meta.toMeta(raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &Command{Meta: m, Name: name, Op: op}, nil
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

type metaJSON struct {
	CommandID      string `json:"command_id"`
	Caller         string `json:"caller"`
	Source         string `json:"source"`
	SourceSequence int64  `json:"source_sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func (j metaJSON) toMeta(received time.Time) (Meta, error) {
	if j.CommandID == "" {
		return Meta{}, fmt.Errorf("command_id required")
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return Meta{}, fmt.Errorf("parse caller: %w", err)
	}
	if j.SourceSequence < 0 {
		return Meta{}, fmt.Errorf("negative source_sequence %d", j.SourceSequence)
	}

	ts := received
	if j.TimestampUs > 0 {
		ts = time.UnixMicro(j.TimestampUs)
	}
	return Meta{
		CommandID:      j.CommandID,
		Caller:         caller,
		Source:         j.Source,
		SourceSequence: j.SourceSequence,
		Timestamp:      ts,
	}, nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	v, err := fpmath.ParseUnits(s, fpmath.NativeConfig)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", field, err)
	}
	return v, nil
}

// parseOptionalAmount treats an absent amount as zero.
func parseOptionalAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return parseAmount(field, s)
}

func parseAccount(field, s string) (uuid.UUID, error) {
	if s == ExchangeSpender {
		return ledger.ExchangeAccount, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse %s: %w", field, err)
	}
	return id, nil
}

type createTokenJSON struct {
	metaJSON
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"total_supply"`
}

func parseCreateToken(data []byte) (Op, metaJSON, error) {
	var j createTokenJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse create_token: %w", err)
	}
	supply, err := parseAmount("total_supply", j.TotalSupply)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &CreateTokenOp{Name: j.Name, Symbol: j.Symbol, TotalSupply: supply}, j.metaJSON, nil
}

type transferJSON struct {
	metaJSON
	AssetID uint32 `json:"asset_id"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

func parseTransfer(data []byte) (Op, metaJSON, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse transfer: %w", err)
	}
	to, err := parseAccount("to", j.To)
	if err != nil {
		return nil, metaJSON{}, err
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &TransferOp{Asset: ledger.AssetID(j.AssetID), To: to, Amount: amount}, j.metaJSON, nil
}

func parseApprove(data []byte) (Op, metaJSON, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse approve: %w", err)
	}
	spender, err := parseAccount("spender", j.Spender)
	if err != nil {
		return nil, metaJSON{}, err
	}
	// zero revokes
	amount, err := parseOptionalAmount("amount", j.Amount)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &ApproveOp{Asset: ledger.AssetID(j.AssetID), Spender: spender, Amount: amount}, j.metaJSON, nil
}

func parseTransferFrom(data []byte) (Op, metaJSON, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse transfer_from: %w", err)
	}
	from, err := parseAccount("from", j.From)
	if err != nil {
		return nil, metaJSON{}, err
	}
	to, err := parseAccount("to", j.To)
	if err != nil {
		return nil, metaJSON{}, err
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &TransferFromOp{Asset: ledger.AssetID(j.AssetID), From: from, To: to, Amount: amount}, j.metaJSON, nil
}

type nativeJSON struct {
	metaJSON
	Account string `json:"account,omitempty"`
	Amount  string `json:"amount"`
}

func parseDeposit(data []byte) (Op, metaJSON, error) {
	var j nativeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse deposit: %w", err)
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse account: %w", err)
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &DepositOp{Account: account, Amount: amount}, j.metaJSON, nil
}

func parseWithdraw(data []byte) (Op, metaJSON, error) {
	var j nativeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse withdraw: %w", err)
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &WithdrawOp{Amount: amount}, j.metaJSON, nil
}

type poolJSON struct {
	metaJSON
	AssetID      uint32 `json:"asset_id"`
	NativeAmount string `json:"native_amount,omitempty"`
	NativeIn     string `json:"native_in,omitempty"`
	MinTokensOut string `json:"min_tokens_out,omitempty"`
	TokenAmount  string `json:"token_amount,omitempty"`
	MinNativeOut string `json:"min_native_out,omitempty"`
}

func parseAddLiquidity(data []byte) (Op, metaJSON, error) {
	var j poolJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse add_liquidity: %w", err)
	}
	amount, err := parseAmount("native_amount", j.NativeAmount)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &AddLiquidityOp{Asset: ledger.AssetID(j.AssetID), NativeAmount: amount}, j.metaJSON, nil
}

func parseBuyTokens(data []byte) (Op, metaJSON, error) {
	var j poolJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse buy_tokens: %w", err)
	}
	nativeIn, err := parseAmount("native_in", j.NativeIn)
	if err != nil {
		return nil, metaJSON{}, err
	}
	minOut, err := parseOptionalAmount("min_tokens_out", j.MinTokensOut)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &BuyTokensOp{Asset: ledger.AssetID(j.AssetID), NativeIn: nativeIn, MinTokensOut: minOut}, j.metaJSON, nil
}

func parseSellTokens(data []byte) (Op, metaJSON, error) {
	var j poolJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse sell_tokens: %w", err)
	}
	tokens, err := parseAmount("token_amount", j.TokenAmount)
	if err != nil {
		return nil, metaJSON{}, err
	}
	minOut, err := parseOptionalAmount("min_native_out", j.MinNativeOut)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &SellTokensOp{Asset: ledger.AssetID(j.AssetID), TokenAmount: tokens, MinNativeOut: minOut}, j.metaJSON, nil
}

type artistJSON struct {
	metaJSON
	ArtistID    uint64 `json:"artist_id"`
	BasePrice   string `json:"base_price,omitempty"`
	TotalSupply uint64 `json:"total_supply,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	Payment     string `json:"payment,omitempty"`
}

func parseCreateArtist(data []byte) (Op, metaJSON, error) {
	var j artistJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse create_artist: %w", err)
	}
	base, err := parseAmount("base_price", j.BasePrice)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &CreateArtistOp{Artist: ledger.ArtistID(j.ArtistID), BasePrice: base, TotalSupply: j.TotalSupply}, j.metaJSON, nil
}

func parseBuyShares(data []byte) (Op, metaJSON, error) {
	var j artistJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse buy_shares: %w", err)
	}
	payment, err := parseAmount("payment", j.Payment)
	if err != nil {
		return nil, metaJSON{}, err
	}
	return &BuySharesOp{Artist: ledger.ArtistID(j.ArtistID), Amount: j.Amount, Payment: payment}, j.metaJSON, nil
}

func parseSellShares(data []byte) (Op, metaJSON, error) {
	var j artistJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, metaJSON{}, fmt.Errorf("parse sell_shares: %w", err)
	}
	return &SellSharesOp{Artist: ledger.ArtistID(j.ArtistID), Amount: j.Amount}, j.metaJSON, nil
}
