package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
)

// reject 策略：满载后第 N+1 个请求立即拿到 Busy，释放一个名额后可再获取
func TestConcurrencyLimiter_RejectPolicy(t *testing.T) {
	l := NewConcurrencyLimiter(2, OverflowReject)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "p1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	r2, err := l.Acquire(ctx, "p1")
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	_, err = l.Acquire(ctx, "p1")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeBusy {
		t.Fatalf("third acquire error = %v, want Busy", err)
	}

	// 其他项目不受影响
	r3, err := l.Acquire(ctx, "p2")
	if err != nil {
		t.Fatalf("acquire for other project failed: %v", err)
	}
	r3()

	r1()
	r4, err := l.Acquire(ctx, "p1")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	r4()
	r2()
}

// queue 策略：满载时排队，名额释放后按序放行
func TestConcurrencyLimiter_QueuePolicy(t *testing.T) {
	l := NewConcurrencyLimiter(1, OverflowQueue)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "p1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	acquired := make(chan func())
	go func() {
		r, err := l.Acquire(ctx, "p1")
		if err != nil {
			t.Errorf("queued acquire failed: %v", err)
			return
		}
		acquired <- r
	}()

	select {
	case <-acquired:
		t.Fatal("queued acquire succeeded before slot was released")
	case <-time.After(50 * time.Millisecond):
	}

	r1()
	select {
	case r2 := <-acquired:
		r2()
	case <-time.After(time.Second):
		t.Fatal("queued acquire did not proceed after release")
	}
}

// queue 策略下等待可被 ctx 取消
func TestConcurrencyLimiter_QueueCancellation(t *testing.T) {
	l := NewConcurrencyLimiter(1, OverflowQueue)

	r1, err := l.Acquire(context.Background(), "p1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "p1"); err == nil {
		t.Fatal("expected cancelled acquire to fail")
	}
}
