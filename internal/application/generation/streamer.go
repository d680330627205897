// Package generation 实现生成请求的编排、流式投递与历史落账
package generation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/service"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/metrics"
)

// DefaultWordsPerMinute 模拟投递的默认语速
const DefaultWordsPerMinute = 150.0

// wpmWindow 计算剩余时间的移动平均窗口大小
const wpmWindow = 10

// Event 投递进度事件。终态事件之后通道关闭，不再有任何事件。
type Event struct {
	State          entity.SessionState `json:"state"`
	Word           string              `json:"word,omitempty"`
	WordsDelivered int                 `json:"words_delivered"`
	TotalWords     int                 `json:"total_words"`
	Err            error               `json:"-"`
}

type command int

const (
	cmdPause command = iota + 1
	cmdResume
	cmdStop
)

// DeliveryController 把生成文本按节奏逐词投递给消费者。
// 状态机：Idle → Streaming ⇄ Paused → {Completed, Stopped, Error}。
// Pause/Resume/Stop 可从任意 goroutine 调用，在下一次词发射前生效。
type DeliveryController struct {
	sessionID string
	requestID string
	interval  time.Duration

	mu        sync.Mutex
	state     entity.SessionState
	words     []string
	cursor    int
	startedAt *time.Time
	doneAt    *time.Time
	// emitGaps 最近若干次词间隔，用于移动平均估算剩余时间
	emitGaps []time.Duration
	lastEmit time.Time

	events chan Event
	ctrl   chan command
	done   chan struct{}

	now func() time.Time
}

// NewDeliveryController 创建投递控制器。wpm<=0 时使用默认语速。
func NewDeliveryController(sessionID, requestID string, wordsPerMinute float64) *DeliveryController {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	return &DeliveryController{
		sessionID: sessionID,
		requestID: requestID,
		interval:  time.Duration(60.0 / wordsPerMinute * float64(time.Second)),
		state:     entity.SessionIdle,
		ctrl:      make(chan command),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start 以配置语速模拟投递完整文本，返回进度事件通道。
// 首个词在一个完整间隔之后发射。只能调用一次。
func (c *DeliveryController) Start(ctx context.Context, text string) <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != entity.SessionIdle {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	c.words = strings.Fields(text)
	c.events = make(chan Event, len(c.words)+4)
	now := c.now()
	c.startedAt = &now
	c.state = entity.SessionStreaming
	metrics.StreamingSessionsActive.Inc()

	go c.runPaced(ctx)
	return c.events
}

// StartChunks 跟随提供商原生流投递：分片到达即拆词发射，不做节奏模拟。
// 暂停期间到达的词进入待发队列，恢复后按序补发。
func (c *DeliveryController) StartChunks(ctx context.Context, chunks <-chan service.TextChunk) <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != entity.SessionIdle {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	c.events = make(chan Event, 64)
	now := c.now()
	c.startedAt = &now
	c.state = entity.SessionStreaming
	metrics.StreamingSessionsActive.Inc()

	go c.runNative(ctx, chunks)
	return c.events
}

// Pause 冻结投递游标，不丢失位置
func (c *DeliveryController) Pause() { c.send(cmdPause) }

// Resume 从冻结的游标处继续投递
func (c *DeliveryController) Resume() { c.send(cmdResume) }

// Stop 在当前游标处终止，已投递前缀即为提交输出
func (c *DeliveryController) Stop() { c.send(cmdStop) }

func (c *DeliveryController) send(cmd command) {
	select {
	case c.ctrl <- cmd:
	case <-c.done:
	}
}

// Session 返回会话当前快照
func (c *DeliveryController) Session() entity.StreamingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return entity.StreamingSession{
		SessionID:           c.sessionID,
		GenerationRequestID: c.requestID,
		State:               c.state,
		WordsDelivered:      c.cursor,
		TotalWords:          len(c.words),
		StartedAt:           c.startedAt,
		CompletedAt:         c.doneAt,
	}
}

// DeliveredText 返回截至当前游标已投递的文本前缀
func (c *DeliveryController) DeliveredText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.words[:c.cursor], " ")
}

// Remaining 按最近观测语速的移动平均估算剩余投递时间
func (c *DeliveryController) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	left := len(c.words) - c.cursor
	if left <= 0 || c.state.Terminal() {
		return 0
	}
	gap := c.interval
	if len(c.emitGaps) > 0 {
		var sum time.Duration
		for _, g := range c.emitGaps {
			sum += g
		}
		gap = sum / time.Duration(len(c.emitGaps))
	}
	return time.Duration(left) * gap
}

// runPaced 定时器驱动的模拟投递主循环。
// 终态或 context 取消时保证定时器清理、done 关闭、事件通道关闭。
func (c *DeliveryController) runPaced(ctx context.Context) {
	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	paused := false
	for {
		if !paused {
			select {
			case <-ctx.Done():
				c.finish(entity.SessionStopped, nil)
				return
			case cmd := <-c.ctrl:
				switch cmd {
				case cmdPause:
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					paused = true
					c.setState(entity.SessionPaused)
					c.emit(Event{State: entity.SessionPaused})
				case cmdStop:
					c.finish(entity.SessionStopped, nil)
					return
				}
			case <-timer.C:
				done := c.emitNextWord()
				if done {
					c.finish(entity.SessionCompleted, nil)
					return
				}
				timer.Reset(c.interval)
			}
			continue
		}

		// Paused：只响应控制信号与取消
		select {
		case <-ctx.Done():
			c.finish(entity.SessionStopped, nil)
			return
		case cmd := <-c.ctrl:
			switch cmd {
			case cmdResume:
				paused = false
				c.setState(entity.SessionStreaming)
				c.emit(Event{State: entity.SessionStreaming, WordsDelivered: c.Session().WordsDelivered, TotalWords: len(c.words)})
				timer.Reset(c.interval)
			case cmdStop:
				c.finish(entity.SessionStopped, nil)
				return
			}
		}
	}
}

// runNative 原生流驱动的投递主循环
func (c *DeliveryController) runNative(ctx context.Context, chunks <-chan service.TextChunk) {
	paused := false
	var pending []string

	flush := func() bool {
		for len(pending) > 0 {
			w := pending[0]
			pending = pending[1:]
			c.mu.Lock()
			c.words = append(c.words, w)
			c.mu.Unlock()
			c.emitNextWord()
		}
		return false
	}

	for {
		if paused {
			select {
			case <-ctx.Done():
				c.finish(entity.SessionStopped, nil)
				return
			case cmd := <-c.ctrl:
				switch cmd {
				case cmdResume:
					paused = false
					c.setState(entity.SessionStreaming)
					flush()
				case cmdStop:
					c.finish(entity.SessionStopped, nil)
					return
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			c.finish(entity.SessionStopped, nil)
			return
		case cmd := <-c.ctrl:
			switch cmd {
			case cmdPause:
				paused = true
				c.setState(entity.SessionPaused)
				c.emit(Event{State: entity.SessionPaused})
			case cmdStop:
				c.finish(entity.SessionStopped, nil)
				return
			}
		case chunk, ok := <-chunks:
			if !ok {
				c.finish(entity.SessionCompleted, nil)
				return
			}
			if chunk.Err != nil {
				c.finish(entity.SessionError, chunk.Err)
				return
			}
			pending = append(pending, strings.Fields(chunk.Text)...)
			flush()
		}
	}
}

// emitNextWord 发射游标处的词，返回是否全部投递完毕
func (c *DeliveryController) emitNextWord() bool {
	c.mu.Lock()
	if c.cursor >= len(c.words) {
		c.mu.Unlock()
		return true
	}
	word := c.words[c.cursor]
	c.cursor++
	delivered := c.cursor
	total := len(c.words)

	now := c.now()
	if !c.lastEmit.IsZero() {
		c.emitGaps = append(c.emitGaps, now.Sub(c.lastEmit))
		if len(c.emitGaps) > wpmWindow {
			c.emitGaps = c.emitGaps[1:]
		}
	}
	c.lastEmit = now
	c.mu.Unlock()

	metrics.StreamingWordsDelivered.Inc()
	c.emit(Event{
		State:          entity.SessionStreaming,
		Word:           word,
		WordsDelivered: delivered,
		TotalWords:     total,
	})
	return delivered >= total
}

func (c *DeliveryController) setState(s entity.SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finish 进入终态：冻结游标、关闭 done 与事件通道。只会发生一次。
func (c *DeliveryController) finish(s entity.SessionState, err error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = s
	now := c.now()
	c.doneAt = &now
	delivered := c.cursor
	total := len(c.words)
	c.mu.Unlock()

	metrics.StreamingSessionsActive.Dec()
	c.emit(Event{State: s, WordsDelivered: delivered, TotalWords: total, Err: err})
	close(c.done)
	close(c.events)
}

// emit 非阻塞投递事件；缓冲耗尽时丢弃进度事件而不是阻塞主循环
func (c *DeliveryController) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
