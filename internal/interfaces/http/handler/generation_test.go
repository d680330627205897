package handler

import (
	"testing"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/generation"
)

// 事件通道只能被认领一次，过期未认领的条目在下次 stash 时清掉
func TestGenerationHandler_StreamStash(t *testing.T) {
	h := NewGenerationHandler(nil, nil)

	stale := make(chan generation.Event)
	close(stale)
	h.mu.Lock()
	h.streams["expired"] = pendingStream{events: stale, stashedAt: time.Now().Add(-streamClaimTTL - time.Minute)}
	h.mu.Unlock()

	fresh := make(chan generation.Event)
	h.stashStream("fresh", fresh)

	if _, ok := h.claimStream("expired"); ok {
		t.Error("expired stream entry should have been evicted")
	}
	if got, ok := h.claimStream("fresh"); !ok || got == nil {
		t.Fatal("fresh stream must be claimable")
	}
	if _, ok := h.claimStream("fresh"); ok {
		t.Error("a stream must only be claimable once")
	}

	h.mu.Lock()
	left := len(h.streams)
	h.mu.Unlock()
	if left != 0 {
		t.Errorf("stream map holds %d entries, want 0", left)
	}
}
