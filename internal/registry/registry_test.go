package registry_test

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"ArtistExchange/internal/registry"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

func issue(t *testing.T, l *ledger.Ledger, r *registry.Registry, name, symbol string, supply *uint256.Int, creator uuid.UUID) (registry.Asset, error) {
	t.Helper()
	tx := l.Begin("create:"+symbol, int64(r.Len()+1), 0)
	a, err := r.Issue(tx, name, symbol, supply, creator, 0)
	if err != nil {
		tx.Discard()
		return a, err
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	r.Record(a)
	return a, nil
}

func TestIssue_MintsToCreator(t *testing.T) {
	l := ledger.New()
	r := registry.New()
	creator := uuid.New()
	supply := fpmath.Units(1_000_000, fpmath.NativeConfig)

	a, err := issue(t, l, r, "Drake Token", "DRAK", supply, creator)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if a.ID != 1 {
		t.Errorf("first asset id: got %d, want 1", a.ID)
	}
	if got := l.Fungible.BalanceOf(a.ID, creator); !got.Eq(supply) {
		t.Errorf("creator balance: got %s, want %s", got.Dec(), supply.Dec())
	}
	if got := l.Fungible.TotalSupply(a.ID); !got.Eq(supply) {
		t.Errorf("supply: got %s, want %s", got.Dec(), supply.Dec())
	}
}

func TestIssue_DuplicateSymbol(t *testing.T) {
	l := ledger.New()
	r := registry.New()

	if _, err := issue(t, l, r, "Drake Token", "DRAK", uint256.NewInt(1), uuid.New()); err != nil {
		t.Fatal(err)
	}
	_, err := issue(t, l, r, "Other", "DRAK", uint256.NewInt(1), uuid.New())
	if !errors.Is(err, errs.ErrDuplicateSymbol) {
		t.Errorf("got %v, want ErrDuplicateSymbol", err)
	}
	if r.Len() != 1 {
		t.Errorf("failed issue recorded an asset, len=%d", r.Len())
	}
}

func TestIssue_ZeroSupply(t *testing.T) {
	_, err := issue(t, ledger.New(), registry.New(), "Zero", "ZERO", uint256.NewInt(0), uuid.New())
	if !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestIssue_EmptySymbol(t *testing.T) {
	_, err := issue(t, ledger.New(), registry.New(), "Name", "  ", uint256.NewInt(5), uuid.New())
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestLookup(t *testing.T) {
	l := ledger.New()
	r := registry.New()
	creator := uuid.New()

	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		if _, err := issue(t, l, r, sym+" Token", sym, uint256.NewInt(10), creator); err != nil {
			t.Fatal(err)
		}
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All: got %d assets, want 3", len(all))
	}
	for i, want := range []string{"AAA", "BBB", "CCC"} {
		if all[i].Symbol != want || all[i].ID != ledger.AssetID(i+1) {
			t.Errorf("All[%d]: got %s/%d, want %s/%d", i, all[i].Symbol, all[i].ID, want, i+1)
		}
	}

	id, err := r.BySymbol("BBB")
	if err != nil || id != 2 {
		t.Errorf("BySymbol: got %d, %v", id, err)
	}
	if _, err := r.BySymbol("ZZZ"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("BySymbol unknown: got %v", err)
	}

	if _, err := r.Get(4); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get(4): got %v, want ErrNotFound", err)
	}
	if r.Exists(ledger.NativeAsset) {
		t.Error("native asset is not a registry asset")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	l := ledger.New()
	r := registry.New()
	if _, err := issue(t, l, r, "A", "A", uint256.NewInt(10), uuid.New()); err != nil {
		t.Fatal(err)
	}

	a, _ := r.Get(1)
	a.TotalSupply.SetUint64(99)

	b, _ := r.Get(1)
	if b.TotalSupply.Uint64() != 10 {
		t.Errorf("mutating a returned record leaked into the registry: %d", b.TotalSupply.Uint64())
	}
}

func TestRestore(t *testing.T) {
	l := ledger.New()
	r := registry.New()
	creator := uuid.New()
	for _, sym := range []string{"X", "Y"} {
		if _, err := issue(t, l, r, sym, sym, uint256.NewInt(1), creator); err != nil {
			t.Fatal(err)
		}
	}

	restored := registry.New()
	if err := restored.Restore(r.All()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if id, err := restored.BySymbol("Y"); err != nil || id != 2 {
		t.Errorf("BySymbol after restore: %d, %v", id, err)
	}

	bad := r.All()
	bad[0], bad[1] = bad[1], bad[0]
	if err := registry.New().Restore(bad); err == nil {
		t.Error("out-of-order restore should fail")
	}
}
