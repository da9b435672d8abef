package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// stubEmbedder returns canned vectors per text, with a fallback.
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"差旅费报销标准", []string{"差旅费报销标准"}},
		{"差旅费 报销", []string{"差旅费", "报销"}},
		{"查询E001的报销", []string{"查询", "e", "的报销"}},
		{"VPN 使用规定", []string{"vpn", "使用规定"}},
		{"123 456", nil},
	}
	for _, c := range cases {
		got := tokenize(c.query)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("tokenize(%q) = %v, want %v", c.query, got, c.want)
		}
	}
}

func TestKeywordScore(t *testing.T) {
	tokens := tokenize("差旅费 标准 a")
	text := "差旅费报销标准：差旅费按每天500元计算。A级城市另计。"

	// 差旅费 ×2 weighted 2, 标准 ×1 weighted 2, a ×1 weighted 1.
	got := keywordScore(tokens, text)
	if got != 7 {
		t.Errorf("score = %v, want 7", got)
	}

	if keywordScore(tokenize("年假"), text) != 0 {
		t.Errorf("unrelated token should score 0")
	}
}

func TestAdaptiveThreshold(t *testing.T) {
	longQuery := make([]rune, 0, 60)
	for i := 0; i < 60; i++ {
		longQuery = append(longQuery, '问')
	}

	cases := []struct {
		name        string
		query       string
		resultCount int
		want        float64
	}{
		{"base", "差旅费报销的标准是什么啊", 5, 0.7},
		{"short query stricter", "差旅费", 5, 0.75},
		{"long query looser", string(longQuery), 5, 0.65},
		{"few results nudge down", "差旅费报销的标准是什么啊", 2, 0.65},
		{"many results nudge up", "差旅费报销的标准是什么啊", 11, 0.75},
		{"short and many clamps at max", "差旅费", 11, 0.8},
		{"long and few stays above min", string(longQuery), 2, 0.6},
	}
	for _, c := range cases {
		if got := adaptiveThreshold(c.query, c.resultCount); got != c.want {
			t.Errorf("%s: threshold = %v, want %v", c.name, got, c.want)
		}
	}
}

func testIndex(chunks []Chunk, embedder Embedder) *Index {
	idx := NewIndex(embedder)
	idx.snap = &snapshot{Chunks: chunks, BuiltAt: time.Now()}
	return idx
}

func TestIndexSearch_RanksByCosine(t *testing.T) {
	embedder := &stubEmbedder{
		vectors: map[string][]float32{
			"差旅费标准":     {1, 0, 0},
			"餐饮费规定":     {0.6, 0.8, 0},
			"办公用品采购":   {0, 0, 1},
			"差旅费报销多少": {1, 0, 0},
		},
		fallback: []float32{0, 1, 0},
	}
	idx := testIndex([]Chunk{
		{Text: "差旅费标准", Embedding: []float32{1, 0, 0}},
		{Text: "餐饮费规定", Embedding: []float32{0.6, 0.8, 0}},
		{Text: "办公用品采购", Embedding: []float32{0, 0, 1}},
	}, embedder)

	results, err := idx.search(context.Background(), "差旅费报销多少", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 || results[0].chunk.Text != "差旅费标准" {
		t.Errorf("results = %+v", results)
	}
	if results[0].score < 0.99 {
		t.Errorf("top score = %v", results[0].score)
	}
}

func TestIndexBuildAndReload(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docs, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "差旅费报销标准为每天500元"
	if err := os.WriteFile(filepath.Join(docs, "差旅费管理办法.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	embedder := &stubEmbedder{fallback: []float32{1, 0, 0}}
	idx := NewIndex(embedder, WithWorkers(2))
	if idx.Ready() {
		t.Fatal("index should not be ready before build")
	}

	if err := idx.Build(context.Background(), docs); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !idx.Ready() || idx.Size() != 1 {
		t.Fatalf("size = %d", idx.Size())
	}

	indexPath := filepath.Join(dir, "index.json")
	if err := idx.SaveFile(indexPath); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := NewIndex(embedder)
	if err := reloaded.LoadFile(indexPath); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reloaded.Ready() || reloaded.Size() != 1 {
		t.Errorf("reloaded size = %d", reloaded.Size())
	}

	results, err := reloaded.search(context.Background(), "差旅费", 1)
	if err != nil || len(results) != 1 {
		t.Fatalf("search after reload: %v, %v", results, err)
	}
	if results[0].chunk.Metadata["file_name"] != "差旅费管理办法.md" {
		t.Errorf("metadata = %v", results[0].chunk.Metadata)
	}
}

func TestIndexBuild_EmptyDirFails(t *testing.T) {
	idx := NewIndex(&stubEmbedder{fallback: []float32{1}})
	if err := idx.Build(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error for empty documents dir")
	}
}

func TestHybridRetrieve_KeywordBoost(t *testing.T) {
	// Two chunks with equal vector similarity; keyword overlap must break
	// the tie in favor of the matching chunk.
	embedder := &stubEmbedder{fallback: []float32{1, 0}}
	idx := testIndex([]Chunk{
		{Text: "差旅费报销标准为每天500元", Embedding: []float32{1, 0}},
		{Text: "办公用品采购流程说明", Embedding: []float32{1, 0}},
	}, embedder)
	r := NewHybridRetriever(idx)

	sources, err := r.Retrieve(context.Background(), "差旅费报销标准", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sources) != 1 || sources[0].Text != "差旅费报销标准为每天500元" {
		t.Errorf("sources = %+v", sources)
	}
	// 0.6×1.0 vector plus keyword boost.
	if sources[0].Score <= 0.6 {
		t.Errorf("score = %v, want > 0.6", sources[0].Score)
	}
}

func TestHybridRetrieve_NeverEmptyWhenCandidatesExist(t *testing.T) {
	// All fused scores fall below every threshold; the pre-filter list
	// must still be returned.
	embedder := &stubEmbedder{
		vectors:  map[string][]float32{"年假规定": {0, 1}},
		fallback: []float32{0, 1},
	}
	idx := testIndex([]Chunk{
		{Text: "差旅费报销标准", Embedding: []float32{1, 0.2}},
	}, embedder)
	r := NewHybridRetriever(idx)

	sources, err := r.Retrieve(context.Background(), "年假规定", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sources) == 0 {
		t.Fatal("retrieval returned zero results despite candidates")
	}
}

func TestHybridRetrieve_TopKCap(t *testing.T) {
	embedder := &stubEmbedder{fallback: []float32{1, 0}}
	var chunks []Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, Chunk{
			Text:      "差旅费条款" + string(rune('A'+i)),
			Embedding: []float32{1, 0},
		})
	}
	idx := testIndex(chunks, embedder)
	r := NewHybridRetriever(idx)

	sources, err := r.Retrieve(context.Background(), "差旅费", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sources) > 3 {
		t.Errorf("got %d sources, want at most 3", len(sources))
	}
}

func TestHybridRetrieve_NonHybridMode(t *testing.T) {
	embedder := &stubEmbedder{fallback: []float32{1, 0}}
	idx := testIndex([]Chunk{
		{Text: "差旅费报销标准", Embedding: []float32{1, 0}},
	}, embedder)
	r := NewHybridRetriever(idx, WithHybridMode(false))

	sources, err := r.Retrieve(context.Background(), "差旅费", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sources) != 1 || sources[0].Score < 0.99 {
		t.Errorf("sources = %+v", sources)
	}
}

func TestHybridRetrieve_NotReady(t *testing.T) {
	r := NewHybridRetriever(NewIndex(&stubEmbedder{fallback: []float32{1}}))

	if r.Ready() {
		t.Error("retriever should not be ready")
	}
	if _, err := r.Retrieve(context.Background(), "差旅费", 3); err == nil {
		t.Error("expected index-not-ready error")
	}
}

func TestSplitText(t *testing.T) {
	chunks := splitText("第一段内容。\n\n第二段内容。", 500, 50)
	if len(chunks) != 1 {
		t.Errorf("short text should stay in one chunk: %v", chunks)
	}

	long := make([]rune, 1200)
	for i := range long {
		long[i] = '字'
	}
	chunks = splitText(string(long), 500, 50)
	if len(chunks) < 2 {
		t.Errorf("long text should be split: got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 500 {
			t.Errorf("chunk exceeds size: %d runes", len([]rune(c)))
		}
	}
}

func TestSplitText_OverlapAtChunkSize(t *testing.T) {
	// An overlap equal to the chunk size must still advance through an
	// oversized paragraph instead of looping on it.
	chunks := splitText(strings.Repeat("天", 600), 500, 500)
	if len(chunks) == 0 {
		t.Fatal("no chunks returned")
	}
	for _, c := range chunks {
		if len([]rune(c)) > 500 {
			t.Errorf("chunk exceeds size: %d runes", len([]rune(c)))
		}
	}
}
