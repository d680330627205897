package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/credit"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/saliency"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/token"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/service"
	apperrors "github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
)

// --- 内存仓储 ---

type memRequests struct {
	mu sync.Mutex
	m  map[string]*entity.GenerationRequest
}

func newMemRequests() *memRequests {
	return &memRequests{m: make(map[string]*entity.GenerationRequest)}
}

func (r *memRequests) Create(_ context.Context, req *entity.GenerationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[req.ID] = req
	return nil
}

func (r *memRequests) GetByID(_ context.Context, id string) (*entity.GenerationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

func (r *memRequests) Update(_ context.Context, req *entity.GenerationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[req.ID] = req
	return nil
}

func (r *memRequests) CountActive(_ context.Context, projectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, req := range r.m {
		if req.ProjectID == projectID && !req.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

type memProjects struct {
	m map[string]*entity.Project
}

func (r *memProjects) GetByID(_ context.Context, id string) (*entity.Project, error) {
	return r.m[id], nil
}

type memElements struct {
	m map[string][]*entity.StoryElement
}

func (r *memElements) GetByProject(_ context.Context, projectID string) ([]*entity.StoryElement, error) {
	return r.m[projectID], nil
}

type memRecords struct {
	mu sync.Mutex
	m  map[string]*entity.GenerationRecord
}

func newMemRecords() *memRecords {
	return &memRecords{m: make(map[string]*entity.GenerationRecord)}
}

func (r *memRecords) Create(_ context.Context, record *entity.GenerationRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[record.ID]; exists {
		return false, nil
	}
	r.m[record.ID] = record
	return true, nil
}

func (r *memRecords) GetByID(_ context.Context, id string) (*entity.GenerationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

func (r *memRecords) ListByProject(_ context.Context, projectID string, filter *repository.RecordFilter, p repository.Pagination) (*repository.PagedResult[*entity.GenerationRecord], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.GenerationRecord
	for _, rec := range r.m {
		if rec.ProjectID == projectID {
			items = append(items, rec)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *memRecords) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

type memLedgerStore struct {
	mu      sync.Mutex
	entries []*entity.CreditLedgerEntry
}

func (r *memLedgerStore) Append(_ context.Context, entry *entity.CreditLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memLedgerStore) GetBalance(_ context.Context, projectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var balance int64
	for _, e := range r.entries {
		if e.ProjectID == projectID {
			balance = e.BalanceAfter
		}
	}
	return balance, nil
}

func (r *memLedgerStore) ListByProject(_ context.Context, projectID string, p repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.CreditLedgerEntry
	for _, e := range r.entries {
		if e.ProjectID == projectID {
			items = append(items, e)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *memLedgerStore) countByProject(projectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.ProjectID == projectID {
			n++
		}
	}
	return n
}

// fakeProvider 按脚本依次返回错误，脚本耗尽后返回成功结果
type fakeProvider struct {
	mu       sync.Mutex
	script   []error
	text     string
	usage    *service.TokenUsage
	calls    int
	blockCh  chan struct{}
	streamCh chan service.TextChunk // 置位时 GenerateStream 直接返回该通道，由测试喂分片
}

func (p *fakeProvider) Generate(ctx context.Context, _ *entity.ModelProfile, _ service.GenerateInput) (*service.GenerateResult, error) {
	p.mu.Lock()
	p.calls++
	var next error
	if len(p.script) > 0 {
		next = p.script[0]
		p.script = p.script[1:]
	}
	block := p.blockCh
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, service.NewTransientError(ctx.Err())
		}
	}
	if next != nil {
		return nil, next
	}
	return &service.GenerateResult{Text: p.text, Usage: p.usage}, nil
}

func (p *fakeProvider) GenerateStream(ctx context.Context, profile *entity.ModelProfile, in service.GenerateInput) (<-chan service.TextChunk, error) {
	p.mu.Lock()
	stream := p.streamCh
	p.mu.Unlock()
	if stream != nil {
		p.mu.Lock()
		p.calls++
		p.mu.Unlock()
		return stream, nil
	}

	result, err := p.Generate(ctx, profile, in)
	if err != nil {
		return nil, err
	}
	ch := make(chan service.TextChunk, 2)
	ch <- service.TextChunk{Text: result.Text, Usage: result.Usage}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// --- 测试装配 ---

type fixture struct {
	coord    *Coordinator
	requests *memRequests
	records  *memRecords
	ledger   *credit.Ledger
	store    *memLedgerStore
	provider *fakeProvider
}

func testGenConfig() *config.GenerationConfig {
	return &config.GenerationConfig{
		TokenEstimateRatio:    4.0,
		DefaultWordsPerMinute: 60000, // 1ms/词，测试不等待
		CacheTTL:              time.Minute,
		MaxConcurrentRequests: 3,
		OverflowPolicy:        "queue",
		MaxRetries:            3,
		RetryBackoff: config.BackoffConfig{
			Initial:    time.Millisecond,
			Max:        5 * time.Millisecond,
			Multiplier: 2.0,
		},
		LengthMultiplier:       2.0,
		BrainstormOutputTokens: 200,
		ReservedOutputTokens:   100,
		CardOutputTokens:       map[string]int{"short": 400, "medium": 750, "long": 1200},
		DefaultCardLength:      "medium",
		DefaultCardCount:       1,
	}
}

func newFixture(t *testing.T, provider *fakeProvider, hardBlock bool) *fixture {
	t.Helper()
	genCfg := testGenConfig()
	creditsCfg := &config.CreditsConfig{
		UnitValue:               0.01,
		InitialAllotment:        1000,
		LowBalanceThreshold:     50,
		HardBlockOnInsufficient: hardBlock,
	}

	store := &memLedgerStore{}
	ledger := credit.NewLedger(store, nil, creditsCfg.LowBalanceThreshold)
	tokens := token.NewEstimator(genCfg.TokenEstimateRatio)
	estimator := credit.NewEstimator(tokens, genCfg, creditsCfg.UnitValue)

	catalog := credit.NewModelCatalog(nil)
	catalog.Put(&entity.ModelProfile{
		Provider:           "openai",
		ModelName:          "gpt-4o",
		ContextWindow:      8000,
		CostPerInputToken:  0.00003,
		CostPerOutputToken: 0.00006,
		SupportsStreaming:  false,
		Active:             true,
	})

	requests := newMemRequests()
	records := newMemRecords()
	elements := &memElements{m: map[string][]*entity.StoryElement{}}
	projects := &memProjects{m: map[string]*entity.Project{
		"p1": {ID: "p1", Name: "novel"},
	}}
	selector := saliency.NewSelector(elements, tokens, saliency.NewMemoryCache(), genCfg.CacheTTL)
	history := NewHistoryStore(records)
	limiter := NewConcurrencyLimiter(genCfg.MaxConcurrentRequests, OverflowPolicy(genCfg.OverflowPolicy))

	coord := NewCoordinator(requests, projects, elements, selector, catalog, estimator,
		ledger, history, provider, limiter, nil, genCfg, creditsCfg)

	if _, err := ledger.Grant(context.Background(), "p1", creditsCfg.InitialAllotment); err != nil {
		t.Fatal(err)
	}
	return &fixture{coord: coord, requests: requests, records: records, ledger: ledger, store: store, provider: provider}
}

func writeInput() CreateInput {
	return CreateInput{
		ProjectID: "p1",
		Operation: entity.OperationWrite,
		Prompt:    "the knight rides into the storm",
		Provider:  "openai",
		Model:     "gpt-4o",
	}
}

func drain(t *testing.T, events <-chan Event) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("generation did not reach a terminal state in time")
		}
	}
}

// --- 场景 ---

// 重试场景：提供商超时两次、第三次成功（max_retries=3）。
// 请求终态 Completed，恰好一条记录、一条净扣费流水。
func TestCoordinator_RetryThenComplete(t *testing.T) {
	timeout := service.NewTransientError(errors.New("request timeout"))
	provider := &fakeProvider{
		script: []error{timeout, timeout},
		text:   "alpha beta gamma",
	}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	holdBalance, _ := f.store.GetBalance(ctx, "p1")
	if holdBalance != 1000-req.EstimatedCredits {
		t.Fatalf("hold not applied: balance %d, estimated %d", holdBalance, req.EstimatedCredits)
	}

	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	got, _ := f.requests.GetByID(ctx, req.ID)
	if got.Status != entity.StatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", got.Status, got.ErrorMessage)
	}
	if provider.callCount() != 3 {
		t.Errorf("provider called %d times, want 3", provider.callCount())
	}
	if f.records.count() != 1 {
		t.Errorf("record count = %d, want exactly 1", f.records.count())
	}
	// 用量未报告 -> 实际成本 = 预估，不产生对账流水：grant + hold 共两条
	if n := f.store.countByProject("p1"); n != 2 {
		t.Errorf("ledger entries = %d, want 2 (grant + hold)", n)
	}
	balance, _ := f.store.GetBalance(ctx, "p1")
	if balance != 1000-req.EstimatedCredits {
		t.Errorf("net balance = %d, want %d", balance, 1000-req.EstimatedCredits)
	}
}

// 终态对账：权威用量高于预估时补扣差额
func TestCoordinator_ReconcileDebitsDifference(t *testing.T) {
	provider := &fakeProvider{
		text:  "alpha beta",
		usage: &service.TokenUsage{InputTokens: 1000, OutputTokens: 500},
	}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	// ceil((1000*0.00003 + 500*0.00006)/0.01) = 6
	balance, _ := f.store.GetBalance(ctx, "p1")
	if balance != 1000-6 {
		t.Errorf("balance = %d, want %d", balance, 1000-6)
	}
	rec, _ := f.records.GetByID(ctx, req.ID)
	if rec == nil || rec.ActualCredits != 6 {
		t.Fatalf("record actual credits = %+v, want 6", rec)
	}
	if rec.ActualInputTokens != 1000 || rec.ActualOutputTokens != 500 {
		t.Errorf("record usage = %d/%d, want 1000/500", rec.ActualInputTokens, rec.ActualOutputTokens)
	}
}

// 硬阻断：预估超出余额时在任何提供商调用之前失败
func TestCoordinator_HardBlockInsufficientCredits(t *testing.T) {
	provider := &fakeProvider{text: "unused"}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	// 把余额烧到只剩 1
	if _, err := f.ledger.Debit(ctx, "p1", 999, entity.OperationWrite, "burn"); err != nil {
		t.Fatal(err)
	}

	_, err := f.coord.Create(ctx, writeInput())
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInsufficientCredits {
		t.Fatalf("err = %v, want insufficient credits", err)
	}
	if provider.callCount() != 0 {
		t.Error("provider must not be called when hard-blocked")
	}
}

// 软警告：余额不足但不阻断，请求带警告标记继续
func TestCoordinator_SoftWarnInsufficientCredits(t *testing.T) {
	provider := &fakeProvider{text: "alpha"}
	f := newFixture(t, provider, false)
	ctx := context.Background()

	if _, err := f.ledger.Debit(ctx, "p1", 999, entity.OperationWrite, "burn"); err != nil {
		t.Fatal(err)
	}

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	if !req.CreditWarning {
		t.Error("request should carry a credit warning")
	}
}

// 永久错误不重试，直接 Failed 并全额退还持有额
func TestCoordinator_PermanentErrorFailsImmediately(t *testing.T) {
	provider := &fakeProvider{
		script: []error{service.NewPermanentError(errors.New("invalid api key"))},
		text:   "unused",
	}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	got, _ := f.requests.GetByID(ctx, req.ID)
	if got.Status != entity.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("failed request should record the error message")
	}
	if provider.callCount() != 1 {
		t.Errorf("provider called %d times, want 1 (no retry on permanent error)", provider.callCount())
	}
	if f.records.count() != 1 {
		t.Errorf("record count = %d, want 1", f.records.count())
	}
	balance, _ := f.store.GetBalance(ctx, "p1")
	if balance != 1000 {
		t.Errorf("balance = %d, want full refund to 1000", balance)
	}
}

// 重试耗尽：全部尝试都是瞬时错误时置为 Failed
func TestCoordinator_RetriesExhausted(t *testing.T) {
	timeout := service.NewTransientError(errors.New("request timeout"))
	provider := &fakeProvider{
		script: []error{timeout, timeout, timeout},
		text:   "unused",
	}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	got, _ := f.requests.GetByID(ctx, req.ID)
	if got.Status != entity.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if provider.callCount() != 3 {
		t.Errorf("provider called %d times, want 3", provider.callCount())
	}
}

// 取消：提供商未返回数据时取消，余额完整退还且不留历史记录
func TestCoordinator_CancelBeforeProviderReturns(t *testing.T) {
	provider := &fakeProvider{text: "unused", blockCh: make(chan struct{})}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}

	// 等提供商调用真正在途
	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("provider call never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := f.coord.Cancel(ctx, req.ID); err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	got, _ := f.requests.GetByID(ctx, req.ID)
	if got.Status != entity.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if f.records.count() != 0 {
		t.Errorf("record count = %d, want 0 for cancel-before-data", f.records.count())
	}
	balance, _ := f.store.GetBalance(ctx, "p1")
	if balance != 1000 {
		t.Errorf("balance = %d, want full refund to 1000", balance)
	}
}

// retry 操作：失败请求重新入队后成功，不会双重扣费
func TestCoordinator_RetryOperation(t *testing.T) {
	provider := &fakeProvider{
		script: []error{service.NewPermanentError(errors.New("bad request"))},
		text:   "alpha beta gamma",
	}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	got, _ := f.requests.GetByID(ctx, req.ID)
	if got.Status != entity.StatusFailed {
		t.Fatalf("status = %s, want failed before retry", got.Status)
	}

	events, err = f.coord.Retry(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	got, _ = f.requests.GetByID(ctx, req.ID)
	if got.Status != entity.StatusCompleted {
		t.Fatalf("status = %s, want completed after retry", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	// 失败时退还、重试时重建持有额：净扣费恰为一次预估
	balance, _ := f.store.GetBalance(ctx, "p1")
	if balance != 1000-req.EstimatedCredits {
		t.Errorf("balance = %d, want %d", balance, 1000-req.EstimatedCredits)
	}
}

func TestCoordinator_CreateValidation(t *testing.T) {
	provider := &fakeProvider{text: "unused"}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	in := writeInput()
	in.Operation = "translate"
	if _, err := f.coord.Create(ctx, in); err == nil {
		t.Error("unsupported operation should be rejected")
	}

	in = writeInput()
	in.ProjectID = "ghost"
	_, err := f.coord.Create(ctx, in)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeProjectNotFound {
		t.Errorf("err = %v, want project not found", err)
	}

	in = writeInput()
	in.Model = "unknown-model"
	if _, err := f.coord.Create(ctx, in); err == nil {
		t.Error("unknown model should be rejected")
	}
}

// 排队中取消：并发名额被占住时取消排队请求，终态 Cancelled、
// 不留历史行、持有额全额退还，不得按失败处理
func TestCoordinator_CancelWhileQueued(t *testing.T) {
	provider := &fakeProvider{text: "alpha beta", blockCh: make(chan struct{})}
	f := newFixture(t, provider, true)
	f.coord.limiter = NewConcurrencyLimiter(1, OverflowQueue)
	ctx := context.Background()

	first, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	firstEvents, err := f.coord.Run(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	// 等第一个请求占住唯一名额
	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("provider call never started")
		}
		time.Sleep(time.Millisecond)
	}

	second, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	secondEvents, err := f.coord.Run(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.coord.Cancel(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	drain(t, secondEvents)

	got, _ := f.requests.GetByID(ctx, second.ID)
	if got.Status != entity.StatusCancelled {
		t.Fatalf("status = %s, want cancelled (error: %s)", got.Status, got.ErrorMessage)
	}
	if rec, _ := f.records.GetByID(ctx, second.ID); rec != nil {
		t.Error("queued-then-cancelled request must not leave a record")
	}

	close(provider.blockCh)
	drain(t, firstEvents)
	got, _ = f.requests.GetByID(ctx, first.ID)
	if got.Status != entity.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	// 第二个请求的持有额全额退还：净扣费只剩第一个请求的
	balance, _ := f.store.GetBalance(ctx, "p1")
	if balance != 1000-first.EstimatedCredits {
		t.Errorf("balance = %d, want %d", balance, 1000-first.EstimatedCredits)
	}
}

// 同一请求的并发 Run：第二次必须被拒，提供商只调用一次、只落一条记录
func TestCoordinator_DoubleRunConflict(t *testing.T) {
	provider := &fakeProvider{text: "alpha", blockCh: make(chan struct{})}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	req, err := f.coord.Create(ctx, writeInput())
	if err != nil {
		t.Fatal(err)
	}
	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.coord.Run(ctx, req.ID); err == nil {
		t.Fatal("second run of the same request must be rejected")
	}

	close(provider.blockCh)
	drain(t, events)

	if provider.callCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount())
	}
	if f.records.count() != 1 {
		t.Errorf("record count = %d, want exactly 1", f.records.count())
	}
}

// 原生流模型：分片到达即投递，消费者不等提供商流结束；
// 末片用量照常参与终态对账
func TestCoordinator_NativeStreamDelivery(t *testing.T) {
	stream := make(chan service.TextChunk)
	provider := &fakeProvider{streamCh: stream}
	f := newFixture(t, provider, true)
	f.coord.catalog.Put(&entity.ModelProfile{
		Provider:           "openai",
		ModelName:          "gpt-4o-stream",
		ContextWindow:      8000,
		CostPerInputToken:  0.00003,
		CostPerOutputToken: 0.00006,
		SupportsStreaming:  true,
		Active:             true,
	})
	ctx := context.Background()

	in := writeInput()
	in.Model = "gpt-4o-stream"
	req, err := f.coord.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	events, err := f.coord.Run(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}

	stream <- service.TextChunk{Text: "alpha beta"}

	// 流还开着就应看到词事件
	sawWords := false
	timeout := time.After(5 * time.Second)
	for !sawWords {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("events closed before any word was delivered")
			}
			if ev.WordsDelivered >= 2 {
				sawWords = true
			}
		case <-timeout:
			t.Fatal("no delivery while the provider stream was still open")
		}
	}

	stream <- service.TextChunk{Text: "gamma", Usage: &service.TokenUsage{InputTokens: 1000, OutputTokens: 500}}
	close(stream)
	drain(t, events)

	got, _ := f.requests.GetByID(ctx, req.ID)
	if got.Status != entity.StatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", got.Status, got.ErrorMessage)
	}
	rec, _ := f.records.GetByID(ctx, req.ID)
	if rec == nil {
		t.Fatal("completed request must leave a record")
	}
	if rec.Response != "alpha beta gamma" {
		t.Errorf("response = %q, want the full streamed text", rec.Response)
	}
	if rec.ActualInputTokens != 1000 || rec.ActualOutputTokens != 500 {
		t.Errorf("usage = %d/%d, want 1000/500", rec.ActualInputTokens, rec.ActualOutputTokens)
	}
	// 实际成本 ceil((1000*0.00003 + 500*0.00006)/0.01) = 6
	balance, _ := f.store.GetBalance(ctx, "p1")
	if balance != 1000-6 {
		t.Errorf("balance = %d, want %d", balance, 1000-6)
	}
}
