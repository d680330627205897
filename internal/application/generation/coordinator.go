package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/credit"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/saliency"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/service"
	apperrors "github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/logger"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/metrics"
)

var tracer = otel.Tracer("generation")

// EventPublisher 生成生命周期事件的外发端口。实现缺失时协调器静默跳过。
type EventPublisher interface {
	PublishGenerationCompleted(ctx context.Context, record *entity.GenerationRecord) error
	PublishGenerationFailed(ctx context.Context, requestID, projectID, reason string) error
	PublishLowBalance(ctx context.Context, projectID string, balance int64) error
}

// CreateInput 创建生成请求的入参
type CreateInput struct {
	ProjectID  string
	DocumentID string
	Operation  entity.OperationType
	Prompt     string
	Provider   string
	Model      string
	Params     credit.EstimateParams
}

// running 一个在途请求的运行时句柄
type running struct {
	cancel     context.CancelFunc
	controller *DeliveryController
	// userCancelled 显式 cancel 与其他取消来源的区分
	userCancelled bool
	mu            sync.Mutex
}

// Coordinator 生成请求的顶层状态机：
// 估价 -> 选上下文 -> 调提供商（瞬时错误重试）-> 流式投递 -> 对账扣费 -> 落历史记录。
// 信用点在创建时按预估全额预扣，终态仅写一条差额流水，重试不会重复扣费。
type Coordinator struct {
	requests  repository.RequestRepository
	projects  repository.ProjectRepository
	elements  repository.ElementRepository
	selector  *saliency.Selector
	catalog   *credit.ModelCatalog
	estimator *credit.Estimator
	ledger    *credit.Ledger
	history   *HistoryStore
	provider  service.TextGenerator
	limiter   *ConcurrencyLimiter
	publisher EventPublisher

	genCfg     *config.GenerationConfig
	creditsCfg *config.CreditsConfig

	mu     sync.Mutex
	active map[string]*running
}

// NewCoordinator 创建生成协调器
func NewCoordinator(
	requests repository.RequestRepository,
	projects repository.ProjectRepository,
	elements repository.ElementRepository,
	selector *saliency.Selector,
	catalog *credit.ModelCatalog,
	estimator *credit.Estimator,
	ledger *credit.Ledger,
	history *HistoryStore,
	provider service.TextGenerator,
	limiter *ConcurrencyLimiter,
	publisher EventPublisher,
	genCfg *config.GenerationConfig,
	creditsCfg *config.CreditsConfig,
) *Coordinator {
	return &Coordinator{
		requests:   requests,
		projects:   projects,
		elements:   elements,
		selector:   selector,
		catalog:    catalog,
		estimator:  estimator,
		ledger:     ledger,
		history:    history,
		provider:   provider,
		limiter:    limiter,
		publisher:  publisher,
		genCfg:     genCfg,
		creditsCfg: creditsCfg,
		active:     make(map[string]*running),
	}
}

// Create 创建生成请求：校验项目与模型、预估成本、执行余额策略并预扣信用点。
// 硬阻断策略下余额不足直接失败；软策略仅在请求上置警告标记。
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (*entity.GenerationRequest, error) {
	ctx, span := tracer.Start(ctx, "generation.Coordinator.Create",
		trace.WithAttributes(
			attribute.String("project_id", in.ProjectID),
			attribute.String("operation", string(in.Operation)),
		))
	defer span.End()

	if !in.Operation.Valid() {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unsupported operation type: %s", in.Operation))
	}
	project, err := c.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, apperrors.ErrProjectNotFound
	}
	profile, err := c.catalog.LookupActive(in.Provider, in.Model)
	if err != nil {
		return nil, err
	}

	est := c.estimator.Estimate(in.Operation, in.Prompt, in.Params, profile)

	balance, err := c.ledger.GetBalance(ctx, in.ProjectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}

	req := entity.NewGenerationRequest(uuid.New().String(), in.ProjectID, in.DocumentID, in.Operation, in.Prompt)
	req.Provider = profile.Provider
	req.Model = profile.ModelName
	req.EstimatedInputTokens = est.InputTokens
	req.EstimatedOutputTokens = est.OutputTokens
	req.EstimatedCredits = est.Credits

	if est.Credits > balance.Credits {
		if c.creditsCfg.HardBlockOnInsufficient {
			return nil, apperrors.ErrInsufficientCredits.WithDetail(
				fmt.Sprintf("estimated %d credits, balance %d", est.Credits, balance.Credits))
		}
		req.CreditWarning = true
	}

	// 预扣：按预估全额建立持有额，终态对账只写差额
	if _, err := c.ledger.Debit(ctx, in.ProjectID, est.Credits, in.Operation, req.ID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to hold estimated credits: %w", err)
	}

	if err := c.requests.Create(ctx, req); err != nil {
		span.RecordError(err)
		// 请求没建起来，退掉持有额
		if _, rerr := c.ledger.Refund(ctx, in.ProjectID, est.Credits, in.Operation, req.ID); rerr != nil {
			logger.Error(ctx, "failed to release credit hold after create failure", rerr, "request_id", req.ID)
		}
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}

	logger.Info(ctx, "generation request created",
		"request_id", req.ID, "operation", string(in.Operation),
		"estimated_credits", est.Credits, "credit_warning", req.CreditWarning)
	return req, nil
}

// Estimate 只读预估，不建请求、不动账本
func (c *Coordinator) Estimate(ctx context.Context, in CreateInput) (*credit.Estimate, error) {
	if !in.Operation.Valid() {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unsupported operation type: %s", in.Operation))
	}
	profile, err := c.catalog.LookupActive(in.Provider, in.Model)
	if err != nil {
		return nil, err
	}
	est := c.estimator.Estimate(in.Operation, in.Prompt, in.Params, profile)
	return &est, nil
}

// Run 驱动一个 Pending 请求走完生命周期，返回进度事件通道。
// 通道在请求终态后关闭。执行不随调用方 ctx 终止，取消走 Cancel。
func (c *Coordinator) Run(ctx context.Context, requestID string) (<-chan Event, error) {
	req, err := c.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation request: %w", err)
	}
	if req == nil {
		return nil, apperrors.ErrRequestNotFound
	}
	if req.Status != entity.StatusPending {
		return nil, apperrors.ErrConflict.WithDetail(
			fmt.Sprintf("request %s is %s, only pending requests can run", requestID, req.Status))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &running{cancel: cancel}
	c.mu.Lock()
	if _, exists := c.active[req.ID]; exists {
		c.mu.Unlock()
		cancel()
		return nil, apperrors.ErrConflict.WithDetail(
			fmt.Sprintf("request %s is already running", requestID))
	}
	c.active[req.ID] = r
	c.mu.Unlock()

	out := make(chan Event, 64)
	go c.execute(runCtx, req, r, out)
	return out, nil
}

// execute 单个请求的执行主体，终态时关闭 out
func (c *Coordinator) execute(ctx context.Context, req *entity.GenerationRequest, r *running, out chan<- Event) {
	ctx, span := tracer.Start(ctx, "generation.Coordinator.execute",
		trace.WithAttributes(attribute.String("request_id", req.ID)))
	started := time.Now()
	defer r.cancel()
	defer span.End()
	defer close(out)
	defer func() {
		c.mu.Lock()
		delete(c.active, req.ID)
		c.mu.Unlock()
	}()

	release, err := c.limiter.Acquire(ctx, req.ProjectID)
	if err != nil {
		c.abort(ctx, req, nil, err.Error())
		return
	}
	defer release()

	profile, err := c.catalog.Lookup(req.Provider, req.Model)
	if err != nil {
		c.abort(ctx, req, nil, err.Error())
		return
	}

	// 上下文装配：预算 = 模型窗口 - 为输出保留的 Token
	budget := profile.ContextWindow - c.genCfg.ReservedOutputTokens
	if budget < 0 {
		budget = 0
	}
	sel, err := c.selector.Select(ctx, req.ProjectID, req.Prompt, budget)
	if err != nil {
		c.abort(ctx, req, nil, fmt.Sprintf("context selection failed: %s", err))
		return
	}
	req.ContextHash = sel.ContextHash
	req.Transition(entity.StatusContextAssembled)
	if err := c.requests.Update(ctx, req); err != nil {
		logger.Error(ctx, "failed to persist request status", err, "request_id", req.ID)
	}

	contextText, err := c.renderContext(ctx, req.ProjectID, sel)
	if err != nil {
		c.abort(ctx, req, sel, fmt.Sprintf("context rendering failed: %s", err))
		return
	}

	req.Transition(entity.StatusProviderCalled)
	if err := c.requests.Update(ctx, req); err != nil {
		logger.Error(ctx, "failed to persist request status", err, "request_id", req.ID)
	}

	in := service.GenerateInput{
		Prompt:    req.Prompt,
		Context:   contextText,
		MaxTokens: c.genCfg.ReservedOutputTokens,
	}
	controller := NewDeliveryController(uuid.New().String(), req.ID, float64(c.genCfg.DefaultWordsPerMinute))

	var (
		events   <-chan Event
		text     string
		usage    *service.TokenUsage
		captured usageCapture
	)
	if profile.SupportsStreaming {
		// 原生流：分片到达即投递，不等提供商完整返回
		chunks, err := c.openStreamWithRetry(ctx, req, profile, in)
		if err != nil {
			if ctx.Err() != nil {
				c.cancelTerminal(ctx, req, sel, nil, "", 0)
				return
			}
			c.failTerminal(ctx, req, sel, err)
			return
		}
		req.Transition(entity.StatusStreaming)
		if err := c.requests.Update(ctx, req); err != nil {
			logger.Error(ctx, "failed to persist request status", err, "request_id", req.ID)
		}
		r.mu.Lock()
		r.controller = controller
		r.mu.Unlock()
		events = controller.StartChunks(ctx, c.relayChunks(ctx, profile, chunks, &captured))
	} else {
		text, usage, err = c.callWithRetry(ctx, req, profile, in)
		if err != nil {
			if ctx.Err() != nil {
				// 提供商未返回任何数据即被取消：全额退还持有额
				c.cancelTerminal(ctx, req, sel, nil, "", 0)
				return
			}
			c.failTerminal(ctx, req, sel, err)
			return
		}
		req.Transition(entity.StatusStreaming)
		if err := c.requests.Update(ctx, req); err != nil {
			logger.Error(ctx, "failed to persist request status", err, "request_id", req.ID)
		}
		// 提供商已完整返回，按语速逐词投递给消费者
		r.mu.Lock()
		r.controller = controller
		r.mu.Unlock()
		events = controller.Start(ctx, text)
	}

	for ev := range events {
		select {
		case out <- ev:
		default:
		}
	}

	session := controller.Session()
	r.mu.Lock()
	userCancelled := r.userCancelled
	r.mu.Unlock()
	if profile.SupportsStreaming {
		usage = captured.get()
		text = controller.DeliveredText()
	}

	switch {
	case userCancelled:
		// 提供商已消耗 Token，取消点之前确认的用量照实扣费；
		// 一个词都没送出且无用量报告时视同调用前取消，全额退还
		delivered := controller.DeliveredText()
		var credits int64
		if usage != nil || delivered != "" {
			credits = c.actualCredits(req, profile, usage)
		}
		c.cancelTerminal(ctx, req, sel, usage, delivered, credits)
	case session.State == entity.SessionError:
		c.failTerminal(ctx, req, sel, fmt.Errorf("delivery failed"))
	default:
		// Completed 与用户 stop（保留前缀为提交输出）都按完成对账
		response := text
		if session.State == entity.SessionStopped {
			response = controller.DeliveredText()
		}
		c.complete(ctx, req, profile, sel, response, usage)
	}
	metrics.GenerationDuration.WithLabelValues(string(req.Operation)).Observe(time.Since(started).Seconds())
}

// retryTransient 执行 call，瞬时错误按指数退避重试，最多 MaxRetries 次尝试
func (c *Coordinator) retryTransient(ctx context.Context, req *entity.GenerationRequest, call func() error) error {
	maxAttempts := c.genCfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := c.genCfg.RetryBackoff.Initial
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !service.IsTransient(err) || attempt == maxAttempts {
			break
		}

		metrics.GenerationRetries.WithLabelValues(string(req.Operation)).Inc()
		logger.Warn(ctx, "transient provider error, retrying",
			"request_id", req.ID, "attempt", attempt, "backoff", backoff.String(), "error", err.Error())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(float64(backoff) * c.genCfg.RetryBackoff.Multiplier)
		if max := c.genCfg.RetryBackoff.Max; max > 0 && backoff > max {
			backoff = max
		}
	}
	return lastErr
}

// callWithRetry 非流式提供商调用，带瞬时错误重试
func (c *Coordinator) callWithRetry(ctx context.Context, req *entity.GenerationRequest, profile *entity.ModelProfile, in service.GenerateInput) (string, *service.TokenUsage, error) {
	var text string
	var usage *service.TokenUsage
	err := c.retryTransient(ctx, req, func() error {
		start := time.Now()
		result, err := c.provider.Generate(ctx, profile, in)
		metrics.LLMCallDuration.WithLabelValues(profile.Provider, profile.ModelName).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.LLMCallTotal.WithLabelValues(profile.Provider, profile.ModelName, "error").Inc()
			return err
		}
		metrics.LLMCallTotal.WithLabelValues(profile.Provider, profile.ModelName, "success").Inc()
		text, usage = result.Text, result.Usage
		return nil
	})
	return text, usage, err
}

// openStreamWithRetry 建立提供商原生流，建立失败按瞬时错误重试。
// 流一旦开始，途中的错误不再重试：内容已对消费者可见。
func (c *Coordinator) openStreamWithRetry(ctx context.Context, req *entity.GenerationRequest, profile *entity.ModelProfile, in service.GenerateInput) (<-chan service.TextChunk, error) {
	var chunks <-chan service.TextChunk
	err := c.retryTransient(ctx, req, func() error {
		ch, err := c.provider.GenerateStream(ctx, profile, in)
		if err != nil {
			metrics.LLMCallTotal.WithLabelValues(profile.Provider, profile.ModelName, "error").Inc()
			return err
		}
		chunks = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// usageCapture 流式路径上末片权威用量的并发安全暂存
type usageCapture struct {
	mu    sync.Mutex
	usage *service.TokenUsage
}

func (u *usageCapture) set(v *service.TokenUsage) {
	u.mu.Lock()
	u.usage = v
	u.mu.Unlock()
}

func (u *usageCapture) get() *service.TokenUsage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}

// relayChunks 把提供商分片转发给投递控制器，途中截获用量报告
func (c *Coordinator) relayChunks(ctx context.Context, profile *entity.ModelProfile, chunks <-chan service.TextChunk, captured *usageCapture) <-chan service.TextChunk {
	start := time.Now()
	out := make(chan service.TextChunk)
	go func() {
		defer close(out)
		failed := false
		for chunk := range chunks {
			if chunk.Usage != nil {
				captured.set(chunk.Usage)
			}
			if chunk.Err != nil {
				failed = true
				metrics.LLMCallTotal.WithLabelValues(profile.Provider, profile.ModelName, "error").Inc()
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		metrics.LLMCallDuration.WithLabelValues(profile.Provider, profile.ModelName).Observe(time.Since(start).Seconds())
		if !failed {
			metrics.LLMCallTotal.WithLabelValues(profile.Provider, profile.ModelName, "success").Inc()
		}
	}()
	return out
}

// abort 提供商调用前的终止分流：运行上下文已被取消的按取消收尾，
// 不留历史行且全额退还持有额，其余按失败
func (c *Coordinator) abort(ctx context.Context, req *entity.GenerationRequest, sel *entity.ContextSelection, errMsg string) {
	if ctx.Err() != nil {
		c.cancelTerminal(ctx, req, sel, nil, "", 0)
		return
	}
	c.fail(ctx, req, sel, errMsg)
}

// renderContext 把选中元素渲染为提供商上下文文本
func (c *Coordinator) renderContext(ctx context.Context, projectID string, sel *entity.ContextSelection) (string, error) {
	if len(sel.Elements) == 0 {
		return "", nil
	}
	elements, err := c.elements.GetByProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	byID := make(map[string]*entity.StoryElement, len(elements))
	for _, el := range elements {
		byID[el.ID] = el
	}
	return saliency.BuildPromptContext(sel, byID), nil
}

// actualCredits 按权威用量计算实际成本；用量缺失时回落到预估值
func (c *Coordinator) actualCredits(req *entity.GenerationRequest, profile *entity.ModelProfile, usage *service.TokenUsage) int64 {
	if usage == nil {
		return req.EstimatedCredits
	}
	return c.estimator.Credits(usage.InputTokens, usage.OutputTokens, profile)
}

// complete 完成对账：以权威用量结算实际成本，差额写一条流水，落一条历史记录
func (c *Coordinator) complete(ctx context.Context, req *entity.GenerationRequest, profile *entity.ModelProfile, sel *entity.ContextSelection, response string, usage *service.TokenUsage) {
	req.Transition(entity.StatusCompleted)
	if err := c.requests.Update(ctx, req); err != nil {
		logger.Error(ctx, "failed to persist completed request", err, "request_id", req.ID)
	}

	actualIn, actualOut := req.EstimatedInputTokens, req.EstimatedOutputTokens
	if usage != nil {
		actualIn, actualOut = usage.InputTokens, usage.OutputTokens
	}
	actualCredits := c.estimator.Credits(actualIn, actualOut, profile)
	c.reconcile(ctx, req, actualCredits)

	metrics.LLMTokensUsed.WithLabelValues(profile.Provider, profile.ModelName, "input").Add(float64(actualIn))
	metrics.LLMTokensUsed.WithLabelValues(profile.Provider, profile.ModelName, "output").Add(float64(actualOut))
	metrics.GenerationTotal.WithLabelValues(string(req.Operation), "completed").Inc()

	record := c.buildRecord(req, sel, response, actualIn, actualOut, actualCredits, "")
	if _, err := c.history.Append(ctx, record); err != nil {
		logger.Error(ctx, "failed to write generation record", err, "request_id", req.ID)
	}

	if c.publisher != nil {
		if err := c.publisher.PublishGenerationCompleted(ctx, record); err != nil {
			logger.Warn(ctx, "failed to publish completion event", "request_id", req.ID, "error", err.Error())
		}
	}
	c.checkLowBalance(ctx, req.ProjectID)
	logger.Info(ctx, "generation completed",
		"request_id", req.ID, "actual_credits", actualCredits,
		"input_tokens", actualIn, "output_tokens", actualOut)
}

// failTerminal 重试耗尽或永久错误：请求置为失败，退还全部持有额，落失败记录
func (c *Coordinator) failTerminal(ctx context.Context, req *entity.GenerationRequest, sel *entity.ContextSelection, cause error) {
	c.fail(ctx, req, sel, cause.Error())
}

func (c *Coordinator) fail(ctx context.Context, req *entity.GenerationRequest, sel *entity.ContextSelection, errMsg string) {
	req.Fail(errMsg)
	if err := c.requests.Update(ctx, req); err != nil {
		logger.Error(ctx, "failed to persist failed request", err, "request_id", req.ID)
	}
	// 失败没有消耗：全额退还持有额
	c.reconcile(ctx, req, 0)
	metrics.GenerationTotal.WithLabelValues(string(req.Operation), "failed").Inc()

	record := c.buildRecord(req, sel, "", 0, 0, 0, errMsg)
	if _, err := c.history.Append(ctx, record); err != nil {
		logger.Error(ctx, "failed to write failure record", err, "request_id", req.ID)
	}
	if c.publisher != nil {
		if err := c.publisher.PublishGenerationFailed(ctx, req.ID, req.ProjectID, errMsg); err != nil {
			logger.Warn(ctx, "failed to publish failure event", "request_id", req.ID, "error", err.Error())
		}
	}
	logger.Error(ctx, "generation failed", fmt.Errorf("%s", errMsg), "request_id", req.ID)
}

// cancelTerminal 取消：只为取消点之前确认消耗的 Token 扣费，其余退还。
// 终态落账不随已取消的运行上下文终止。
func (c *Coordinator) cancelTerminal(ctx context.Context, req *entity.GenerationRequest, sel *entity.ContextSelection, usage *service.TokenUsage, deliveredText string, actualCredits int64) {
	ctx = context.WithoutCancel(ctx)
	req.Transition(entity.StatusCancelled)
	if err := c.requests.Update(ctx, req); err != nil {
		logger.Error(ctx, "failed to persist cancelled request", err, "request_id", req.ID)
	}
	c.reconcile(ctx, req, actualCredits)
	metrics.GenerationTotal.WithLabelValues(string(req.Operation), "cancelled").Inc()

	// 提供商返回过数据才留取消记录；调用前取消不产生历史行
	if usage != nil || deliveredText != "" {
		actualIn, actualOut := 0, 0
		if usage != nil {
			actualIn, actualOut = usage.InputTokens, usage.OutputTokens
		}
		record := c.buildRecord(req, sel, deliveredText, actualIn, actualOut, actualCredits, "")
		if _, err := c.history.Append(ctx, record); err != nil {
			logger.Error(ctx, "failed to write cancellation record", err, "request_id", req.ID)
		}
	}
	logger.Info(ctx, "generation cancelled", "request_id", req.ID, "actual_credits", actualCredits)
}

// reconcile 终态信用点对账：实际成本对预扣持有额的差额写一条流水。
// 差额为零不写流水；整个生命周期净扣费恰好等于实际成本。
func (c *Coordinator) reconcile(ctx context.Context, req *entity.GenerationRequest, actualCredits int64) {
	delta := actualCredits - req.EstimatedCredits
	switch {
	case delta < 0:
		if _, err := c.ledger.Refund(ctx, req.ProjectID, -delta, req.Operation, req.ID); err != nil {
			logger.Error(ctx, "failed to refund credit difference", err, "request_id", req.ID, "delta", delta)
		}
	case delta > 0:
		if _, err := c.ledger.Debit(ctx, req.ProjectID, delta, req.Operation, req.ID); err != nil {
			logger.Error(ctx, "failed to debit credit difference", err, "request_id", req.ID, "delta", delta)
		}
	}
}

func (c *Coordinator) buildRecord(req *entity.GenerationRequest, sel *entity.ContextSelection, response string, actualIn, actualOut int, actualCredits int64, errMsg string) *entity.GenerationRecord {
	record := &entity.GenerationRecord{
		ID:                 req.ID,
		ProjectID:          req.ProjectID,
		DocumentID:         req.DocumentID,
		Operation:          req.Operation,
		Provider:           req.Provider,
		Model:              req.Model,
		Prompt:             req.Prompt,
		Response:           response,
		ActualInputTokens:  actualIn,
		ActualOutputTokens: actualOut,
		ActualCredits:      actualCredits,
		Status:             req.Status,
		ErrorMessage:       errMsg,
		CreatedAt:          time.Now(),
	}
	if sel != nil {
		record.ContextUsed = sel.ElementIDs()
	}
	return record
}

// checkLowBalance 终态后检查余额告警
func (c *Coordinator) checkLowBalance(ctx context.Context, projectID string) {
	balance, err := c.ledger.GetBalance(ctx, projectID)
	if err != nil {
		logger.Warn(ctx, "failed to check balance for alerting", "project_id", projectID, "error", err.Error())
		return
	}
	if !balance.LowBalance {
		return
	}
	metrics.LowBalanceProjects.Inc()
	if c.publisher != nil {
		if err := c.publisher.PublishLowBalance(ctx, projectID, balance.Credits); err != nil {
			logger.Warn(ctx, "failed to publish low balance event", "project_id", projectID, "error", err.Error())
		}
	}
}

// Cancel 协作式取消：在途请求向提供商调用与投递控制器传播中止信号。
// 已入库但未运行的 Pending 请求直接置为取消并退还持有额。
func (c *Coordinator) Cancel(ctx context.Context, requestID string) error {
	c.mu.Lock()
	r, ok := c.active[requestID]
	c.mu.Unlock()
	if ok {
		r.mu.Lock()
		r.userCancelled = true
		controller := r.controller
		r.mu.Unlock()
		r.cancel()
		if controller != nil {
			controller.Stop()
		}
		return nil
	}

	req, err := c.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load generation request: %w", err)
	}
	if req == nil {
		return apperrors.ErrRequestNotFound
	}
	if req.Status.Terminal() {
		return apperrors.ErrConflict.WithDetail(fmt.Sprintf("request %s already %s", requestID, req.Status))
	}
	c.cancelTerminal(ctx, req, nil, nil, "", 0)
	return nil
}

// Retry 把失败的请求重新入队执行。重新走余额策略并重建持有额，
// 之前失败时持有额已全额退还，因此不会双重扣费。
func (c *Coordinator) Retry(ctx context.Context, requestID string) (<-chan Event, error) {
	req, err := c.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation request: %w", err)
	}
	if req == nil {
		return nil, apperrors.ErrRequestNotFound
	}
	if !req.PrepareRetry() {
		return nil, apperrors.ErrConflict.WithDetail(
			fmt.Sprintf("request %s is %s, only failed requests can retry", requestID, req.Status))
	}

	balance, err := c.ledger.GetBalance(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if req.EstimatedCredits > balance.Credits {
		if c.creditsCfg.HardBlockOnInsufficient {
			return nil, apperrors.ErrInsufficientCredits.WithDetail(
				fmt.Sprintf("estimated %d credits, balance %d", req.EstimatedCredits, balance.Credits))
		}
		req.CreditWarning = true
	}
	if _, err := c.ledger.Debit(ctx, req.ProjectID, req.EstimatedCredits, req.Operation, req.ID); err != nil {
		return nil, fmt.Errorf("failed to hold estimated credits: %w", err)
	}
	if err := c.requests.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to persist retried request: %w", err)
	}
	return c.Run(ctx, requestID)
}

// Pause 暂停在途请求的投递
func (c *Coordinator) Pause(requestID string) error {
	return c.withController(requestID, func(d *DeliveryController) { d.Pause() })
}

// Resume 恢复在途请求的投递
func (c *Coordinator) Resume(requestID string) error {
	return c.withController(requestID, func(d *DeliveryController) { d.Resume() })
}

// Stop 在当前游标终止投递，已投递前缀作为提交输出
func (c *Coordinator) Stop(requestID string) error {
	return c.withController(requestID, func(d *DeliveryController) { d.Stop() })
}

// Session 返回在途请求的投递会话快照
func (c *Coordinator) Session(requestID string) (*entity.StreamingSession, error) {
	var snapshot entity.StreamingSession
	err := c.withController(requestID, func(d *DeliveryController) { snapshot = d.Session() })
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Coordinator) withController(requestID string, fn func(*DeliveryController)) error {
	c.mu.Lock()
	r, ok := c.active[requestID]
	c.mu.Unlock()
	if !ok {
		return apperrors.ErrRequestNotFound.WithDetail(fmt.Sprintf("request %s is not running", requestID))
	}
	r.mu.Lock()
	controller := r.controller
	r.mu.Unlock()
	if controller == nil {
		return apperrors.ErrConflict.WithDetail(fmt.Sprintf("request %s has not started streaming", requestID))
	}
	fn(controller)
	return nil
}

// Get 查询请求当前状态
func (c *Coordinator) Get(ctx context.Context, requestID string) (*entity.GenerationRequest, error) {
	req, err := c.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation request: %w", err)
	}
	if req == nil {
		return nil, apperrors.ErrRequestNotFound
	}
	return req, nil
}
