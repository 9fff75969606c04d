package classify

import "testing"

func testTaxonomy() *Taxonomy {
	return NewTaxonomy(
		[]Category{
			{Name: "보건/공공보건", Keywords: []string{"질병관리청", "감염병", "보건"}},
			{Name: "IT/과학", Keywords: []string{"인공지능", "반도체"}},
			{Name: "경제/금융", Keywords: []string{"금리", "코스피"}},
		},
		[]string{"연예", "프로야구"},
	)
}

func TestTagsMatchInTaxonomyOrder(t *testing.T) {
	t.Parallel()

	tax := testTaxonomy()
	got := tax.Tags("질병관리청 감염병 경보에 코스피 출렁")
	want := []string{"보건/공공보건", "경제/금융"}
	if len(got) != len(want) {
		t.Fatalf("unexpected tags: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tag %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestTagsCategoryListedOnce(t *testing.T) {
	t.Parallel()

	tax := testTaxonomy()
	got := tax.Tags("질병관리청 보건 당국 감염병 브리핑")
	if len(got) != 1 || got[0] != "보건/공공보건" {
		t.Fatalf("expected single tag for multiple keyword hits, got %v", got)
	}
}

func TestTagsOffTopicTitle(t *testing.T) {
	t.Parallel()

	tax := testTaxonomy()
	if got := tax.Tags("주말 날씨 맑고 일교차 커"); len(got) != 0 {
		t.Fatalf("expected no tags, got %v", got)
	}
}

func TestHasNegativeHint(t *testing.T) {
	t.Parallel()

	tax := testTaxonomy()
	if !tax.HasNegativeHint("연예계 소식 한눈에") {
		t.Fatalf("expected negative hint to match")
	}
	// Veto applies even when a category keyword is also present.
	if !tax.HasNegativeHint("프로야구 구단 감염병 방역 점검") {
		t.Fatalf("expected negative hint to match mixed title")
	}
	if tax.HasNegativeHint("질병관리청 감염병 경보 발령") {
		t.Fatalf("unexpected negative hint match")
	}
}

func TestMatchingIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	tax := NewTaxonomy(
		[]Category{{Name: "IT/과학", Keywords: []string{"OpenAI", "반도체"}}},
		[]string{"Gossip"},
	)
	if got := tax.Tags("openai 새 모델 공개"); len(got) != 1 {
		t.Fatalf("expected case-insensitive keyword match, got %v", got)
	}
	if !tax.HasNegativeHint("celebrity GOSSIP roundup") {
		t.Fatalf("expected case-insensitive hint match")
	}
}

func TestNewTaxonomyDropsBlankEntries(t *testing.T) {
	t.Parallel()

	tax := NewTaxonomy(
		[]Category{
			{Name: "", Keywords: []string{"버려짐"}},
			{Name: "빈 키워드", Keywords: []string{"  ", ""}},
			{Name: "유효", Keywords: []string{" 금리 "}},
		},
		[]string{" ", "연예"},
	)

	if got := len(tax.Categories()); got != 1 {
		t.Fatalf("expected 1 category to survive, got %d", got)
	}
	if got := tax.Tags("한국은행 금리 동결"); len(got) != 1 || got[0] != "유효" {
		t.Fatalf("expected trimmed keyword to match, got %v", got)
	}
	if got := len(tax.NegativeHints()); got != 1 {
		t.Fatalf("expected 1 hint to survive, got %d", got)
	}
}
