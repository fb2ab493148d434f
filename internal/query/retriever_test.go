package query

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/bunko/internal/embedding"
	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/internal/store"
)

func TestFormatContext(t *testing.T) {
	hits := []*models.Hit{
		{Chunk: models.Chunk{Content: "Rent is due monthly.", Metadata: map[string]interface{}{
			models.MetaTitle: "Lease", models.MetaPage: 2,
		}}},
		{Chunk: models.Chunk{Content: "No metadata here."}},
	}
	want := "RELEVANT INFORMATION:\n\n" +
		"[DOCUMENT 1] Lease\nPage: 2\nText: Rent is due monthly.\n\n" +
		"[DOCUMENT 2] Unknown Document\nPage: Unknown\nText: No metadata here.\n\n"
	if got := FormatContext(hits); got != want {
		t.Errorf("FormatContext =\n%q\nwant\n%q", got, want)
	}
	if got := FormatContext(nil); got != "RELEVANT INFORMATION:\n\n" {
		t.Errorf("empty context = %q", got)
	}
}

func TestSources_Truncates(t *testing.T) {
	long := strings.Repeat("é", 250)
	hits := []*models.Hit{
		{Chunk: models.Chunk{Content: long, Metadata: map[string]interface{}{models.MetaDocID: "d1"}}, Distance: 0.5},
		{Chunk: models.Chunk{Content: strings.Repeat("x", 200)}},
	}
	src := Sources(hits)
	if len(src) != 2 {
		t.Fatalf("got %d sources", len(src))
	}
	if src[0].Text != strings.Repeat("é", 200)+"..." {
		t.Errorf("long text not truncated to 200 characters: %d runes", len([]rune(src[0].Text)))
	}
	if src[0].DocID != "d1" || src[0].Title != "Unknown" || src[0].Distance != 0.5 {
		t.Errorf("source 0 = %+v", src[0])
	}
	if src[1].Text != strings.Repeat("x", 200) {
		t.Error("text at the limit should not be truncated")
	}
}

func TestRetriever_Retrieve(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	emb := embedding.NewMockEmbedder(16)
	ctx := context.Background()

	texts := []string{"termination requires notice", "rent is due monthly", "pets are not allowed"}
	vecs, _ := emb.EmbedBatch(ctx, texts)
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Content: text, Metadata: map[string]interface{}{
			models.MetaDocID: "lease", models.MetaTitle: "Lease", models.MetaPage: i + 1,
		}}
	}
	if err := s.AddDocument(ctx, "lease", chunks, vecs); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(s, emb)
	res, err := r.Retrieve(ctx, "rent is due monthly", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 2 || res.Hits[0].Row != 1 {
		t.Fatalf("hits = %+v", res.Hits)
	}
	top := res.Response.Sources[0]
	if top.Page != 2 || top.Title != "Lease" || top.Text != "rent is due monthly" {
		t.Errorf("top source = %+v", top)
	}
	if !strings.Contains(res.Response.Context, "[DOCUMENT 1] Lease\nPage: 2\n") {
		t.Errorf("context = %q", res.Response.Context)
	}

	none, err := r.Retrieve(ctx, "anything", 3, []string{"other"})
	if err != nil {
		t.Fatal(err)
	}
	if len(none.Hits) != 0 || len(none.Response.Sources) != 0 {
		t.Errorf("filtered to unknown doc: %+v", none.Hits)
	}
}
