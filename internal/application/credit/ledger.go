package credit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	apperrors "github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/metrics"
)

// Balance 余额查询结果
type Balance struct {
	ProjectID  string `json:"project_id"`
	Credits    int64  `json:"credits"`
	LowBalance bool   `json:"low_balance"`
}

// Ledger 项目信用点账本。
// 写入按项目串行化：读余额 -> 校验 -> 追加流水在每项目互斥锁与数据库事务内完成，
// 防止并发双花。调用方只传入非负的数额与方向，符号在内部统一，避免正负号混淆。
type Ledger struct {
	repo      repository.LedgerRepository
	txMgr     repository.Transactor
	threshold int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger 创建账本服务
func NewLedger(repo repository.LedgerRepository, txMgr repository.Transactor, lowBalanceThreshold int64) *Ledger {
	return &Ledger{
		repo:      repo,
		txMgr:     txMgr,
		threshold: lowBalanceThreshold,
		locks:     make(map[string]*sync.Mutex),
	}
}

// projectLock 获取项目级互斥锁
func (l *Ledger) projectLock(projectID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[projectID] = m
	}
	return m
}

// Debit 扣减信用点，返回新余额。amount 为非负数额。
func (l *Ledger) Debit(ctx context.Context, projectID string, amount int64, op entity.OperationType, requestID string) (int64, error) {
	balance, err := l.append(ctx, projectID, entity.LedgerEntryDebit, -amount, op, requestID)
	if err == nil {
		metrics.CreditsDebited.WithLabelValues(string(op)).Add(float64(amount))
	}
	return balance, err
}

// Refund 退还信用点，返回新余额。amount 为非负数额。
func (l *Ledger) Refund(ctx context.Context, projectID string, amount int64, op entity.OperationType, requestID string) (int64, error) {
	balance, err := l.append(ctx, projectID, entity.LedgerEntryRefund, amount, op, requestID)
	if err == nil {
		metrics.CreditsRefunded.WithLabelValues(string(op)).Add(float64(amount))
	}
	return balance, err
}

// Grant 发放信用点（初始额度或追加购买），返回新余额。
func (l *Ledger) Grant(ctx context.Context, projectID string, amount int64) (int64, error) {
	return l.append(ctx, projectID, entity.LedgerEntryGrant, amount, "", "")
}

// append 追加一条流水。signedAmount 为带符号金额（扣减为负）。
func (l *Ledger) append(ctx context.Context, projectID string, kind entity.LedgerEntryKind, signedAmount int64, op entity.OperationType, requestID string) (int64, error) {
	// 调用方必须传入非负数额；Debit/Refund/Grant 内部统一符号
	switch kind {
	case entity.LedgerEntryDebit:
		if signedAmount > 0 {
			return 0, apperrors.ErrInvalidAmount.WithDetail("debit amount must be a non-negative magnitude")
		}
	case entity.LedgerEntryRefund, entity.LedgerEntryGrant:
		if signedAmount < 0 {
			return 0, apperrors.ErrInvalidAmount.WithDetail("refund/grant amount must be a non-negative magnitude")
		}
	}

	lock := l.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	var newBalance int64
	run := func(txCtx context.Context) error {
		balance, err := l.repo.GetBalance(txCtx, projectID)
		if err != nil {
			return err
		}
		newBalance = balance + signedAmount
		entry := &entity.CreditLedgerEntry{
			ID:           uuid.New().String(),
			ProjectID:    projectID,
			Kind:         kind,
			Amount:       signedAmount,
			Operation:    op,
			RequestID:    requestID,
			BalanceAfter: newBalance,
			CreatedAt:    time.Now(),
		}
		return l.repo.Append(txCtx, entry)
	}

	var err error
	if l.txMgr != nil {
		err = l.txMgr.WithTransaction(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// GetBalance 返回项目余额及是否低于告警阈值
func (l *Ledger) GetBalance(ctx context.Context, projectID string) (*Balance, error) {
	balance, err := l.repo.GetBalance(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Balance{
		ProjectID:  projectID,
		Credits:    balance,
		LowBalance: balance < l.threshold,
	}, nil
}

// ListEntries 按项目查询流水
func (l *Ledger) ListEntries(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	return l.repo.ListByProject(ctx, projectID, pagination)
}
