package generation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/service"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

// 不间断投递期间 words_delivered 严格递增直到 total_words
func TestDelivery_Monotonic(t *testing.T) {
	c := NewDeliveryController("s1", "r1", 60000) // 1ms/词，测试走得快
	events := c.Start(context.Background(), words(30))

	last := 0
	var final Event
	for ev := range events {
		if ev.Word != "" {
			if ev.WordsDelivered != last+1 {
				t.Fatalf("words_delivered jumped from %d to %d", last, ev.WordsDelivered)
			}
			last = ev.WordsDelivered
		}
		final = ev
	}

	if last != 30 {
		t.Errorf("delivered %d words, want 30", last)
	}
	if final.State != entity.SessionCompleted {
		t.Errorf("final state = %s, want completed", final.State)
	}
	if got := c.Session().WordsDelivered; got != 30 {
		t.Errorf("session frozen at %d words, want 30", got)
	}
}

// 取消场景：100 词、150 wpm（400ms/词），t=1.0s 调 stop()。
// 预期投递 floor(150/60*1)=2 个词，终态 Stopped，stop 之后无进度事件。
func TestDelivery_StopScenario(t *testing.T) {
	c := NewDeliveryController("s1", "r1", 150)
	events := c.Start(context.Background(), words(100))

	go func() {
		time.Sleep(1 * time.Second)
		c.Stop()
	}()

	delivered := 0
	sawTerminal := false
	for ev := range events {
		if sawTerminal {
			t.Fatal("received event after terminal state")
		}
		if ev.Word != "" {
			delivered = ev.WordsDelivered
		}
		if ev.State.Terminal() {
			sawTerminal = true
			if ev.State != entity.SessionStopped {
				t.Errorf("terminal state = %s, want stopped", ev.State)
			}
		}
	}

	if delivered != 2 {
		t.Errorf("delivered %d words before stop, want 2", delivered)
	}
	if c.Session().State != entity.SessionStopped {
		t.Errorf("session state = %s, want stopped", c.Session().State)
	}
	if got := c.DeliveredText(); got != "word word" {
		t.Errorf("delivered prefix = %q, want two words", got)
	}

	// 终态后游标冻结
	frozen := c.Session().WordsDelivered
	time.Sleep(500 * time.Millisecond)
	if c.Session().WordsDelivered != frozen {
		t.Error("words_delivered changed after terminal state")
	}
}

// 暂停冻结游标，恢复后从原位置继续
func TestDelivery_PauseResume(t *testing.T) {
	c := NewDeliveryController("s1", "r1", 6000) // 10ms/词
	events := c.Start(context.Background(), words(10))

	// 第 3 个词后暂停
	var paused bool
	delivered := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Word != "" {
				delivered = ev.WordsDelivered
				if delivered == 3 && !paused {
					paused = true
					c.Pause()
				}
			}
		}
	}()

	time.Sleep(200 * time.Millisecond)
	cursorAtPause := c.Session().WordsDelivered
	if state := c.Session().State; state != entity.SessionPaused {
		t.Fatalf("state after pause = %s, want paused", state)
	}

	// 暂停期间不前进
	time.Sleep(100 * time.Millisecond)
	if got := c.Session().WordsDelivered; got != cursorAtPause {
		t.Fatalf("cursor moved while paused: %d -> %d", cursorAtPause, got)
	}

	c.Resume()
	<-done

	if delivered != 10 {
		t.Errorf("delivered %d words after resume, want 10", delivered)
	}
	if c.Session().State != entity.SessionCompleted {
		t.Errorf("final state = %s, want completed", c.Session().State)
	}
}

// 调用方 context 取消等价于 stop：终态 Stopped，无悬挂定时器
func TestDelivery_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewDeliveryController("s1", "r1", 150)
	events := c.Start(ctx, words(100))

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if c.Session().State != entity.SessionStopped {
					t.Errorf("state = %s, want stopped", c.Session().State)
				}
				return
			}
			_ = ev
		case <-deadline:
			t.Fatal("controller did not terminate after context cancel")
		}
	}
}

func TestDelivery_EmptyText(t *testing.T) {
	c := NewDeliveryController("s1", "r1", 60000)
	events := c.Start(context.Background(), "")

	var final Event
	for ev := range events {
		final = ev
	}
	if final.State != entity.SessionCompleted {
		t.Errorf("final state = %s, want completed", final.State)
	}
	if c.Session().TotalWords != 0 {
		t.Errorf("total_words = %d, want 0", c.Session().TotalWords)
	}
}

// 原生流模式：分片到达即投递，流结束进入 Completed
func TestDelivery_NativeChunks(t *testing.T) {
	chunks := make(chan service.TextChunk)
	c := NewDeliveryController("s1", "r1", 150)
	events := c.StartChunks(context.Background(), chunks)

	go func() {
		chunks <- service.TextChunk{Text: "one two "}
		chunks <- service.TextChunk{Text: "three"}
		close(chunks)
	}()

	delivered := 0
	var final Event
	for ev := range events {
		if ev.Word != "" {
			delivered = ev.WordsDelivered
		}
		final = ev
	}
	if delivered != 3 {
		t.Errorf("delivered %d words, want 3", delivered)
	}
	if final.State != entity.SessionCompleted {
		t.Errorf("final state = %s, want completed", final.State)
	}
	if got := c.DeliveredText(); got != "one two three" {
		t.Errorf("delivered text = %q", got)
	}
}

// 原生流中途出错进入 Error 终态
func TestDelivery_NativeChunkError(t *testing.T) {
	chunks := make(chan service.TextChunk, 2)
	chunks <- service.TextChunk{Text: "partial"}
	chunks <- service.TextChunk{Err: service.NewTransientError(context.DeadlineExceeded)}
	close(chunks)

	c := NewDeliveryController("s1", "r1", 150)
	events := c.StartChunks(context.Background(), chunks)

	var final Event
	for ev := range events {
		final = ev
	}
	if final.State != entity.SessionError {
		t.Errorf("final state = %s, want error", final.State)
	}
	if final.Err == nil {
		t.Error("terminal error event should carry the cause")
	}
}
