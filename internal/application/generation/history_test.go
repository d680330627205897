package generation

import (
	"context"
	"testing"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
)

func sampleRecord(id string) *entity.GenerationRecord {
	return &entity.GenerationRecord{
		ID:                 id,
		ProjectID:          "p1",
		Operation:          entity.OperationWrite,
		Provider:           "openai",
		Model:              "gpt-4o",
		Prompt:             "prompt",
		Response:           "response",
		ActualInputTokens:  100,
		ActualOutputTokens: 200,
		ActualCredits:      3,
		Status:             entity.StatusCompleted,
		ContextUsed:        []string{"e1", "e2"},
	}
}

// 同一请求 ID 的第二次写入是无副作用的空操作，永不产生两行
func TestHistory_AppendIdempotent(t *testing.T) {
	records := newMemRecords()
	h := NewHistoryStore(records)
	ctx := context.Background()

	inserted, err := h.Append(ctx, sampleRecord("req-1"))
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("first append should insert")
	}

	inserted, err = h.Append(ctx, sampleRecord("req-1"))
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("second append for the same id must be a no-op")
	}
	if records.count() != 1 {
		t.Fatalf("record count = %d, want 1", records.count())
	}
}

func TestHistory_AppendStampsSchemaVersion(t *testing.T) {
	records := newMemRecords()
	h := NewHistoryStore(records)

	rec := sampleRecord("req-2")
	rec.ContextSchema = 0
	if _, err := h.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	stored, _ := records.GetByID(context.Background(), "req-2")
	if stored.ContextSchema != entity.ContextSchemaVersion {
		t.Errorf("context schema = %d, want %d", stored.ContextSchema, entity.ContextSchemaVersion)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("created_at should be stamped")
	}
}

func TestHistory_ListByProject(t *testing.T) {
	records := newMemRecords()
	h := NewHistoryStore(records)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := h.Append(ctx, sampleRecord(id)); err != nil {
			t.Fatal(err)
		}
	}

	from := time.Now().Add(-time.Hour)
	result, err := h.ListByProject(ctx, "p1", &repository.RecordFilter{From: &from}, repository.NewPagination(1, 20))
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 3 {
		t.Errorf("total = %d, want 3", result.Total)
	}
}
