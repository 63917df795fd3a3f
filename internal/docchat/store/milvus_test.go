package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodePages(t *testing.T) {
	tests := []struct {
		name  string
		pages []int
		want  string
	}{
		{"single", []int{1}, "1"},
		{"multiple", []int{1, 2, 3}, "1,2,3"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := encodePages(tt.pages)
			assert.Equal(t, tt.want, encoded)
			assert.Equal(t, tt.pages, decodePages(encoded))
		})
	}
}

func TestDecodePagesSkipsGarbage(t *testing.T) {
	assert.Equal(t, []int{1, 3}, decodePages("1,x,3"))
}

func TestToRetrievalResult(t *testing.T) {
	meta := map[string]any{
		"document_id":  "01ABCDEF",
		"filename":     "manual.pdf",
		"object_key":   "prod-1/01ABCDEF/manual.pdf",
		"content":      "installation guide",
		"search_text":  "installation",
		"primary_page": int64(2),
		"page_numbers": "1,2",
	}

	rr := toRetrievalResult(42, meta)

	assert.Equal(t, int64(42), rr.ChunkID)
	assert.Equal(t, "01ABCDEF", rr.DocumentID)
	assert.Equal(t, "manual.pdf", rr.Filename)
	assert.Equal(t, "prod-1/01ABCDEF/manual.pdf", rr.ObjectKey)
	assert.Equal(t, "installation guide", rr.Content)
	assert.Equal(t, 2, rr.PrimaryPage)
	assert.Equal(t, []int{1, 2}, rr.PageNumbers)
	assert.Contains(t, rr.PageNumbers, rr.PrimaryPage)
}

func TestToRetrievalResultMissingFields(t *testing.T) {
	rr := toRetrievalResult(1, map[string]any{})
	assert.Equal(t, int64(1), rr.ChunkID)
	assert.Empty(t, rr.DocumentID)
	assert.Nil(t, rr.PageNumbers)
}
