package credit

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	apperrors "github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
)

// memLedgerRepo 内存流水仓储，用于账本单元测试
type memLedgerRepo struct {
	mu      sync.Mutex
	entries map[string][]*entity.CreditLedgerEntry
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{entries: make(map[string][]*entity.CreditLedgerEntry)}
}

func (r *memLedgerRepo) Append(_ context.Context, entry *entity.CreditLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ProjectID] = append(r.entries[entry.ProjectID], entry)
	return nil
}

func (r *memLedgerRepo) GetBalance(_ context.Context, projectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[projectID]
	if len(list) == 0 {
		return 0, nil
	}
	return list[len(list)-1].BalanceAfter, nil
}

func (r *memLedgerRepo) ListByProject(_ context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[projectID]
	return repository.NewPagedResult(list, int64(len(list)), pagination), nil
}

func (r *memLedgerRepo) sum(projectID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, e := range r.entries[projectID] {
		total += e.Amount
	}
	return total
}

func TestLedger_DebitRefundGrant(t *testing.T) {
	repo := newMemLedgerRepo()
	ledger := NewLedger(repo, nil, 50)
	ctx := context.Background()

	if _, err := ledger.Grant(ctx, "p1", 1000); err != nil {
		t.Fatalf("grant: %v", err)
	}

	balance, err := ledger.Debit(ctx, "p1", 300, entity.OperationWrite, "req-1")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if balance != 700 {
		t.Errorf("balance after debit = %d, want 700", balance)
	}

	balance, err = ledger.Refund(ctx, "p1", 100, entity.OperationWrite, "req-1")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if balance != 800 {
		t.Errorf("balance after refund = %d, want 800", balance)
	}
}

func TestLedger_InvalidAmount(t *testing.T) {
	ledger := NewLedger(newMemLedgerRepo(), nil, 0)
	ctx := context.Background()

	if _, err := ledger.Debit(ctx, "p1", -5, entity.OperationWrite, ""); err == nil {
		t.Fatal("expected InvalidAmount for negative debit magnitude")
	} else if apperrors.AsAppError(err).Code != apperrors.CodeInvalidAmount {
		t.Fatalf("unexpected error code: %v", err)
	}

	if _, err := ledger.Refund(ctx, "p1", -5, entity.OperationWrite, ""); err == nil {
		t.Fatal("expected InvalidAmount for negative refund magnitude")
	}
}

func TestLedger_LowBalanceThreshold(t *testing.T) {
	ledger := NewLedger(newMemLedgerRepo(), nil, 50)
	ctx := context.Background()

	if _, err := ledger.Grant(ctx, "p1", 60); err != nil {
		t.Fatal(err)
	}
	b, err := ledger.GetBalance(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if b.LowBalance {
		t.Error("balance 60 with threshold 50 should not be low")
	}

	if _, err := ledger.Debit(ctx, "p1", 20, entity.OperationWrite, ""); err != nil {
		t.Fatal(err)
	}
	b, err = ledger.GetBalance(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !b.LowBalance {
		t.Error("balance 40 with threshold 50 should be low")
	}
}

// 信用点守恒：任意扣减/退款序列后 balance == initial + Σ(amount)，整数无漂移
func TestLedger_Conservation(t *testing.T) {
	repo := newMemLedgerRepo()
	ledger := NewLedger(repo, nil, 0)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	const initial = int64(1_000_000)
	if _, err := ledger.Grant(ctx, "p1", initial); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 500; i++ {
		amount := int64(rng.Intn(1000))
		if rng.Intn(2) == 0 {
			if _, err := ledger.Debit(ctx, "p1", amount, entity.OperationWrite, ""); err != nil {
				t.Fatal(err)
			}
		} else {
			if _, err := ledger.Refund(ctx, "p1", amount, entity.OperationWrite, ""); err != nil {
				t.Fatal(err)
			}
		}
	}

	b, err := ledger.GetBalance(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Credits != repo.sum("p1") {
		t.Fatalf("balance %d != sum of entries %d", b.Credits, repo.sum("p1"))
	}
}

// 并发扣减在项目级串行化下不得双花
func TestLedger_ConcurrentDebits(t *testing.T) {
	repo := newMemLedgerRepo()
	ledger := NewLedger(repo, nil, 0)
	ctx := context.Background()

	const initial = int64(10000)
	if _, err := ledger.Grant(ctx, "p1", initial); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ledger.Debit(ctx, "p1", 10, entity.OperationWrite, "")
		}()
	}
	wg.Wait()

	b, err := ledger.GetBalance(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Credits != initial-1000 {
		t.Fatalf("balance = %d, want %d", b.Credits, initial-1000)
	}
	if b.Credits != repo.sum("p1") {
		t.Fatalf("balance %d diverged from entry sum %d", b.Credits, repo.sum("p1"))
	}
}
