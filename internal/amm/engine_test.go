package amm_test

import (
	"ArtistExchange/internal/amm"
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

const asset ledger.AssetID = 1

var native = ledger.FungibleInstrument(ledger.NativeAsset)

func units(s string) *uint256.Int { return fpmath.MustParseUnits(s, fpmath.NativeConfig) }

type fixture struct {
	t      *testing.T
	ledger *ledger.Ledger
	engine *amm.Engine
	seq    int64
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, ledger: ledger.New(), engine: amm.NewEngine(ledger.ExchangeAccount)}
}

// fund mints tokens and native to holder and approves the custody account
// for all of the tokens.
func (f *fixture) fund(holder uuid.UUID, tokens, nativeAmt string) {
	f.t.Helper()
	f.do(func(tx *ledger.Tx) error {
		if err := tx.Mint(ledger.FungibleInstrument(asset), holder, units(tokens), ledger.JournalTypeMint); err != nil {
			return err
		}
		if err := tx.Mint(native, holder, units(nativeAmt), ledger.JournalTypeDeposit); err != nil {
			return err
		}
		tx.Approve(asset, holder, ledger.ExchangeAccount, new(uint256.Int).SetAllOne())
		return nil
	})
}

func (f *fixture) do(fn func(tx *ledger.Tx) error) error {
	f.seq++
	tx := f.ledger.Begin("op", f.seq, 0)
	if err := fn(tx); err != nil {
		tx.Discard()
		return err
	}
	if _, err := tx.Commit(); err != nil {
		f.t.Fatalf("Commit: %v", err)
	}
	return nil
}

func (f *fixture) addLiquidity(provider uuid.UUID, nativeAmt string) {
	f.t.Helper()
	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.AddLiquidity(tx, provider, asset, units(nativeAmt))
		return err
	})
	if err != nil {
		f.t.Fatalf("AddLiquidity: %v", err)
	}
}

func (f *fixture) checkCustody() {
	f.t.Helper()
	tokenRes, nativeRes := f.engine.Liquidity(asset)
	if got := f.ledger.Fungible.BalanceOf(asset, ledger.ExchangeAccount); !got.Eq(tokenRes) {
		f.t.Errorf("custody tokens %s != reserve %s", got.Dec(), tokenRes.Dec())
	}
	if got := f.ledger.Fungible.BalanceOf(ledger.NativeAsset, ledger.ExchangeAccount); !got.Eq(nativeRes) {
		f.t.Errorf("custody native %s != reserve %s", got.Dec(), nativeRes.Dec())
	}
}

// ============================================================================
// Test: AddLiquidity
// ============================================================================

func TestAddLiquidity_FixedMultiplier(t *testing.T) {
	f := newFixture(t)
	provider := uuid.New()
	f.fund(provider, "1000000", "10")

	f.addLiquidity(provider, "1")

	tokenRes, nativeRes := f.engine.Liquidity(asset)
	if !tokenRes.Eq(units("1000")) || !nativeRes.Eq(units("1")) {
		t.Errorf("liquidity: got (%s, %s), want (1000, 1)",
			fpmath.FormatUnits(tokenRes, fpmath.NativeConfig), fpmath.FormatUnits(nativeRes, fpmath.NativeConfig))
	}
	if got := f.ledger.Fungible.BalanceOf(asset, provider); !got.Eq(units("999000")) {
		t.Errorf("provider tokens: got %s", got.Dec())
	}
	f.checkCustody()
}

func TestAddLiquidity_IgnoresPoolRatio(t *testing.T) {
	f := newFixture(t)
	provider, trader := uuid.New(), uuid.New()
	f.fund(provider, "1000000", "10")
	f.fund(trader, "0", "5")

	f.addLiquidity(provider, "1")
	if err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.BuyTokens(tx, trader, asset, fpmath.Zero(), units("0.5"))
		return err
	}); err != nil {
		t.Fatalf("BuyTokens: %v", err)
	}

	before, _ := f.engine.Liquidity(asset)
	f.addLiquidity(provider, "1")
	after, _ := f.engine.Liquidity(asset)

	if diff := new(uint256.Int).Sub(after, before); !diff.Eq(units("1000")) {
		t.Errorf("second deposit pulled %s tokens, want exactly 1000", diff.Dec())
	}
}

func TestAddLiquidity_Zero(t *testing.T) {
	f := newFixture(t)
	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.AddLiquidity(tx, uuid.New(), asset, fpmath.Zero())
		return err
	})
	if !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestAddLiquidity_NoAllowance(t *testing.T) {
	f := newFixture(t)
	provider := uuid.New()
	f.do(func(tx *ledger.Tx) error {
		return tx.Mint(ledger.FungibleInstrument(asset), provider, units("5000"), ledger.JournalTypeMint)
	})

	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.AddLiquidity(tx, provider, asset, units("1"))
		return err
	})
	if !errors.Is(err, errs.ErrInsufficientAllowance) {
		t.Errorf("got %v, want ErrInsufficientAllowance", err)
	}
	if _, ok := f.engine.Pool(asset); ok {
		t.Error("failed deposit created a pool")
	}
}

func TestAddLiquidity_Overflow(t *testing.T) {
	f := newFixture(t)
	huge := new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 4)
	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.AddLiquidity(tx, uuid.New(), asset, huge)
		return err
	})
	if !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("got %v, want ErrArithmeticOverflow", err)
	}
}

// ============================================================================
// Test: Pricing
// ============================================================================

func TestPrice(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Price(asset); !errors.Is(err, errs.ErrEmptyPool) {
		t.Errorf("empty pool: got %v, want ErrEmptyPool", err)
	}

	provider := uuid.New()
	f.fund(provider, "1000000", "1")
	f.addLiquidity(provider, "1")

	price, err := f.engine.Price(asset)
	if err != nil {
		t.Fatal(err)
	}
	// 1 native / 1000 tokens
	if !price.Eq(units("0.001")) {
		t.Errorf("price: got %s, want 0.001", fpmath.FormatUnits(price, fpmath.NativeConfig))
	}
}

func TestQuoteBuy_Scenario(t *testing.T) {
	f := newFixture(t)
	provider := uuid.New()
	f.fund(provider, "1000000", "1")
	f.addLiquidity(provider, "1")

	out, err := f.engine.QuoteBuy(asset, units("0.1"))
	if err != nil {
		t.Fatal(err)
	}

	// 1000 - 1000*1/(1+0.0997), remaining reserve rounded up.
	want, _ := uint256.FromDecimal("90661089388014913158")
	if !out.Eq(want) {
		t.Errorf("quote: got %s, want %s", out.Dec(), want.Dec())
	}

	// quoting does not touch state
	tokenRes, _ := f.engine.Liquidity(asset)
	if !tokenRes.Eq(units("1000")) {
		t.Errorf("quote mutated reserves: %s", tokenRes.Dec())
	}
}

// ============================================================================
// Test: Swaps
// ============================================================================

func TestBuyTokens_MatchesQuote(t *testing.T) {
	f := newFixture(t)
	provider, buyer := uuid.New(), uuid.New()
	f.fund(provider, "1000000", "1")
	f.fund(buyer, "0", "1")
	f.addLiquidity(provider, "1")

	quote, _ := f.engine.QuoteBuy(asset, units("0.1"))
	var out *uint256.Int
	if err := f.do(func(tx *ledger.Tx) error {
		var err error
		out, err = f.engine.BuyTokens(tx, buyer, asset, quote, units("0.1"))
		return err
	}); err != nil {
		t.Fatalf("BuyTokens: %v", err)
	}

	if !out.Eq(quote) {
		t.Errorf("out %s != quote %s", out.Dec(), quote.Dec())
	}
	if got := f.ledger.Fungible.BalanceOf(asset, buyer); !got.Eq(out) {
		t.Errorf("buyer tokens: got %s, want %s", got.Dec(), out.Dec())
	}
	if got := f.ledger.Fungible.BalanceOf(ledger.NativeAsset, buyer); !got.Eq(units("0.9")) {
		t.Errorf("buyer native: got %s, want 0.9", got.Dec())
	}
	f.checkCustody()
}

func TestBuyTokens_Slippage(t *testing.T) {
	f := newFixture(t)
	provider, buyer := uuid.New(), uuid.New()
	f.fund(provider, "1000000", "1")
	f.fund(buyer, "0", "1")
	f.addLiquidity(provider, "1")

	before, _ := f.engine.Pool(asset)
	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.BuyTokens(tx, buyer, asset, units("91"), units("0.1"))
		return err
	})
	if !errors.Is(err, errs.ErrSlippageExceeded) {
		t.Fatalf("got %v, want ErrSlippageExceeded", err)
	}

	after, _ := f.engine.Pool(asset)
	if !after.TokenReserve.Eq(before.TokenReserve) || !after.NativeReserve.Eq(before.NativeReserve) {
		t.Error("failed buy changed reserves")
	}
	if got := f.ledger.Fungible.BalanceOf(ledger.NativeAsset, buyer); !got.Eq(units("1")) {
		t.Errorf("failed buy charged buyer: %s", got.Dec())
	}
}

func TestBuyTokens_EmptyPool(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()
	f.fund(buyer, "0", "1")

	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.BuyTokens(tx, buyer, asset, fpmath.Zero(), units("0.1"))
		return err
	})
	if !errors.Is(err, errs.ErrEmptyPool) {
		t.Errorf("got %v, want ErrEmptyPool", err)
	}
}

func TestBuyTokens_InsufficientNative(t *testing.T) {
	f := newFixture(t)
	provider, buyer := uuid.New(), uuid.New()
	f.fund(provider, "1000000", "1")
	f.addLiquidity(provider, "1")

	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.BuyTokens(tx, buyer, asset, fpmath.Zero(), units("0.1"))
		return err
	})
	if !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestSellTokens_ZeroAmount(t *testing.T) {
	f := newFixture(t)
	for _, reserves := range []bool{false, true} {
		if reserves {
			provider := uuid.New()
			f.fund(provider, "1000000", "1")
			f.addLiquidity(provider, "1")
		}
		err := f.do(func(tx *ledger.Tx) error {
			_, err := f.engine.SellTokens(tx, uuid.New(), asset, fpmath.Zero(), fpmath.Zero())
			return err
		})
		if !errors.Is(err, errs.ErrInvalidAmount) {
			t.Errorf("reserves=%v: got %v, want ErrInvalidAmount", reserves, err)
		}
	}
}

func TestSellTokens(t *testing.T) {
	f := newFixture(t)
	provider, trader := uuid.New(), uuid.New()
	f.fund(provider, "1000000", "1")
	f.fund(trader, "0", "1")
	f.addLiquidity(provider, "1")

	if err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.BuyTokens(tx, trader, asset, fpmath.Zero(), units("0.1"))
		return err
	}); err != nil {
		t.Fatal(err)
	}
	f.do(func(tx *ledger.Tx) error {
		tx.Approve(asset, trader, ledger.ExchangeAccount, units("50"))
		return nil
	})

	var out *uint256.Int
	if err := f.do(func(tx *ledger.Tx) error {
		var err error
		out, err = f.engine.SellTokens(tx, trader, asset, units("50"), fpmath.Zero())
		return err
	}); err != nil {
		t.Fatalf("SellTokens: %v", err)
	}

	want, _ := uint256.FromDecimal("57168092117551672")
	if !out.Eq(want) {
		t.Errorf("native out: got %s, want %s", out.Dec(), want.Dec())
	}
	if got := f.ledger.Fungible.Allowance(asset, trader, ledger.ExchangeAccount); !got.IsZero() {
		t.Errorf("allowance not consumed: %s", got.Dec())
	}
	f.checkCustody()
}

func TestSellTokens_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	provider, trader := uuid.New(), uuid.New()
	f.fund(provider, "1000000", "1")
	f.addLiquidity(provider, "1")
	f.do(func(tx *ledger.Tx) error {
		tx.Approve(asset, trader, ledger.ExchangeAccount, units("10"))
		return nil
	})

	err := f.do(func(tx *ledger.Tx) error {
		_, err := f.engine.SellTokens(tx, trader, asset, units("10"), fpmath.Zero())
		return err
	})
	if !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestSwaps_KNeverDecreases(t *testing.T) {
	f := newFixture(t)
	provider, trader := uuid.New(), uuid.New()
	f.fund(provider, "1000000", "3")
	f.fund(trader, "100000", "100")
	f.addLiquidity(provider, "3")

	amounts := []string{"0.000000000000000001", "0.37", "1", "12.5", "0.000001", "3"}
	for i := 0; i < 40; i++ {
		amt := units(amounts[i%len(amounts)])
		before, _ := f.engine.Pool(asset)

		err := f.do(func(tx *ledger.Tx) error {
			var err error
			if i%2 == 0 {
				_, err = f.engine.BuyTokens(tx, trader, asset, fpmath.Zero(), amt)
			} else {
				_, err = f.engine.SellTokens(tx, trader, asset, new(uint256.Int).Mul(amt, uint256.NewInt(100)), fpmath.Zero())
			}
			return err
		})
		if err != nil {
			// dust trades may round to zero output
			if !errors.Is(err, errs.ErrSlippageExceeded) {
				t.Fatalf("step %d: %v", i, err)
			}
			continue
		}

		after, _ := f.engine.Pool(asset)
		if after.K().Cmp(before.K()) < 0 {
			t.Fatalf("step %d: k decreased from %s to %s", i, before.K(), after.K())
		}
	}

	if err := ledger.NewInvariantValidator(f.ledger).ValidateGlobalSupply(); err != nil {
		t.Error(err)
	}
	f.checkCustody()
}
