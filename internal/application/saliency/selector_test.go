package saliency

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/token"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// memElementRepo 内存元素仓储
type memElementRepo struct {
	mu       sync.Mutex
	elements map[string][]*entity.StoryElement
	calls    int
}

func (r *memElementRepo) GetByProject(_ context.Context, projectID string) ([]*entity.StoryElement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.elements[projectID], nil
}

// elementWithTokens 构造恰好 tokens 个 Token（ratio=4）的元素，文本以 markers 开头
func elementWithTokens(id string, tokens int, markers string, updatedAt time.Time) *entity.StoryElement {
	length := tokens * 4
	text := markers
	if len(text) > length {
		text = text[:length]
	}
	text += strings.Repeat("x", length-len(text))
	return &entity.StoryElement{
		ID:         id,
		ProjectID:  "p1",
		Kind:       entity.ElementKindCharacter,
		Name:       id,
		Text:       text,
		Visibility: entity.VisibilityRelevant,
		UpdatedAt:  updatedAt,
	}
}

func newTestSelector(repo *memElementRepo, ttl time.Duration) *Selector {
	return NewSelector(repo, token.NewEstimator(4.0), NewMemoryCache(), ttl)
}

// 贪心场景：Token 大小 [50 80 120 30 200]，评分正好按该顺序递减，预算 150。
// 选中 50+80=130 后，120、30、200 均会超出预算被跳过，最终 {50,80}，合计 130。
func TestSelect_GreedyScenario(t *testing.T) {
	now := time.Now()
	repo := &memElementRepo{elements: map[string][]*entity.StoryElement{
		"p1": {
			elementWithTokens("e1", 50, "alpha bravo charlie delta ", now),
			elementWithTokens("e2", 80, "alpha bravo charlie ", now),
			elementWithTokens("e3", 120, "alpha bravo ", now),
			elementWithTokens("e4", 30, "alpha ", now),
			elementWithTokens("e5", 200, "", now),
		},
	}}
	s := newTestSelector(repo, time.Minute)

	sel, err := s.Select(context.Background(), "p1", "alpha bravo charlie delta echo", 150)
	if err != nil {
		t.Fatal(err)
	}

	if len(sel.Elements) != 2 {
		t.Fatalf("selected %d elements, want 2: %+v", len(sel.Elements), sel.Elements)
	}
	if sel.Elements[0].ElementID != "e1" || sel.Elements[1].ElementID != "e2" {
		t.Errorf("selected order = %s, %s; want e1, e2", sel.Elements[0].ElementID, sel.Elements[1].ElementID)
	}
	if sel.TotalTokens != 130 {
		t.Errorf("total tokens = %d, want 130", sel.TotalTokens)
	}
}

// 预算不变量：任意元素集与预算下 total_tokens <= budget
func TestSelect_BudgetInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := time.Now()

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(20)
		elements := make([]*entity.StoryElement, 0, n)
		for i := 0; i < n; i++ {
			elements = append(elements, elementWithTokens(
				strings.Repeat("e", i+1),
				1+rng.Intn(300),
				"alpha ",
				now.Add(-time.Duration(rng.Intn(1000))*time.Hour),
			))
		}
		repo := &memElementRepo{elements: map[string][]*entity.StoryElement{"p1": elements}}
		s := newTestSelector(repo, time.Minute)

		budget := rng.Intn(500)
		sel, err := s.Select(context.Background(), "p1", "alpha bravo", budget)
		if err != nil {
			t.Fatal(err)
		}
		if sel.TotalTokens > budget {
			t.Fatalf("trial %d: total_tokens %d exceeds budget %d", trial, sel.TotalTokens, budget)
		}
	}
}

func TestSelect_EmptyProject(t *testing.T) {
	repo := &memElementRepo{elements: map[string][]*entity.StoryElement{}}
	s := newTestSelector(repo, time.Minute)

	sel, err := s.Select(context.Background(), "empty", "anything", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if sel.TotalTokens != 0 || len(sel.Elements) != 0 {
		t.Errorf("empty project should yield empty selection, got %+v", sel)
	}
}

func TestSelect_NeverVisibilityExcluded(t *testing.T) {
	now := time.Now()
	hidden := elementWithTokens("hidden", 10, "alpha ", now)
	hidden.Visibility = entity.VisibilityNever
	repo := &memElementRepo{elements: map[string][]*entity.StoryElement{
		"p1": {hidden, elementWithTokens("visible", 10, "alpha ", now)},
	}}
	s := newTestSelector(repo, time.Minute)

	sel, err := s.Select(context.Background(), "p1", "alpha", 1000)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range sel.Elements {
		if e.ElementID == "hidden" {
			t.Fatal("visibility=never element must not be selected")
		}
	}
}

func TestSelect_AlwaysVisibilityFirst(t *testing.T) {
	now := time.Now()
	pinned := elementWithTokens("pinned", 10, "", now.Add(-time.Hour))
	pinned.Visibility = entity.VisibilityAlways
	repo := &memElementRepo{elements: map[string][]*entity.StoryElement{
		"p1": {elementWithTokens("match", 10, "alpha bravo charlie ", now), pinned},
	}}
	s := newTestSelector(repo, time.Minute)

	sel, err := s.Select(context.Background(), "p1", "alpha bravo charlie", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Elements) != 2 || sel.Elements[0].ElementID != "pinned" {
		t.Fatalf("always element should sort first, got %+v", sel.Elements)
	}
}

// 缓存幂等：TTL 内相同 (project, prompt, budget) 的第二次调用不重新评分
func TestSelect_CacheIdempotent(t *testing.T) {
	now := time.Now()
	repo := &memElementRepo{elements: map[string][]*entity.StoryElement{
		"p1": {elementWithTokens("e1", 20, "alpha ", now)},
	}}
	s := newTestSelector(repo, time.Minute)
	ctx := context.Background()

	first, err := s.Select(ctx, "p1", "alpha", 100)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Select(ctx, "p1", "alpha", 100)
	if err != nil {
		t.Fatal(err)
	}

	if first.ContextHash != second.ContextHash {
		t.Errorf("context hash changed between identical calls: %s != %s", first.ContextHash, second.ContextHash)
	}
	if s.ScoreCalls() != 1 {
		t.Errorf("score routine ran %d times, want 1", s.ScoreCalls())
	}
}

// 并发合并：同 hash 的并发调用只触发一次计算
func TestSelect_ConcurrentCoalesced(t *testing.T) {
	now := time.Now()
	repo := &memElementRepo{elements: map[string][]*entity.StoryElement{
		"p1": {elementWithTokens("e1", 20, "alpha ", now)},
	}}
	s := newTestSelector(repo, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Select(context.Background(), "p1", "alpha", 100); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if s.ScoreCalls() != 1 {
		t.Errorf("score routine ran %d times under concurrency, want 1", s.ScoreCalls())
	}
}

// 元素更新后 hash 变化，旧缓存自然失效
func TestSelect_HashChangesOnElementUpdate(t *testing.T) {
	now := time.Now()
	el := elementWithTokens("e1", 20, "alpha ", now)
	repo := &memElementRepo{elements: map[string][]*entity.StoryElement{"p1": {el}}}
	s := newTestSelector(repo, time.Minute)
	ctx := context.Background()

	first, err := s.Select(ctx, "p1", "alpha", 100)
	if err != nil {
		t.Fatal(err)
	}

	el.UpdatedAt = now.Add(time.Minute)
	second, err := s.Select(ctx, "p1", "alpha", 100)
	if err != nil {
		t.Fatal(err)
	}

	if first.ContextHash == second.ContextHash {
		t.Error("context hash should change when a contributing element is updated")
	}
	if s.ScoreCalls() != 2 {
		t.Errorf("score routine ran %d times, want 2", s.ScoreCalls())
	}
}
