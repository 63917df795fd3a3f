package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/model"
)

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})

	chunks := c.Chunk("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunkEmptyText(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n  "))
}

func TestChunkSplitsOnParagraphs(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 30, ChunkOverlap: 0})

	text := "first paragraph here\n\nsecond paragraph here\n\nthird one"
	chunks := c.Chunk(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 30)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
	assert.Equal(t, "first paragraph here", chunks[0])
}

func TestChunkOverlapPrefix(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 25, ChunkOverlap: 10})

	text := "aaaa bbbb cccc\n\ndddd eeee ffff\n\ngggg hhhh iiii"
	chunks := c.Chunk(text)
	require.GreaterOrEqual(t, len(chunks), 2)

	// 第二块以第一块原始内容的尾部 10 个字符开头
	assert.True(t, strings.HasPrefix(chunks[1], " bbbb cccc"),
		"chunk %q should start with tail of previous raw chunk", chunks[1])
}

func TestChunkHardSplitOversizedWord(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 10, ChunkOverlap: 0})

	chunks := c.Chunk(strings.Repeat("x", 35))
	require.Len(t, chunks, 4)
	for i := 0; i < 3; i++ {
		assert.Len(t, chunks[i], 10)
	}
	assert.Len(t, chunks[3], 5)
}

func TestChunkDeterministic(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 40, ChunkOverlap: 10})

	text := "Sentence one is here. Sentence two follows. Sentence three ends it.\n\nA new paragraph starts."
	first := c.Chunk(text)
	second := c.Chunk(text)
	assert.Equal(t, first, second)
}

// multiPageDoc 构造固定页宽的多页文档，页间以单个分隔字符连接。
func multiPageDoc(t *testing.T, pageTexts []string) *model.ParsedDocument {
	t.Helper()

	var sb strings.Builder
	pages := make([]model.PageContent, 0, len(pageTexts))
	for i, text := range pageTexts {
		if i > 0 {
			sb.WriteString("\n")
		}
		start := sb.Len()
		sb.WriteString(text)
		pages = append(pages, model.PageContent{
			Page:      i + 1,
			Text:      text,
			CharStart: start,
			CharEnd:   sb.Len(),
		})
	}
	return &model.ParsedDocument{
		FullText:   sb.String(),
		Pages:      pages,
		TotalPages: len(pageTexts),
	}
}

func TestChunkWithPagesStraddle(t *testing.T) {
	// 每页 120 字符、块大小 100:必然有块跨越页边界
	pageText := strings.Repeat("word ", 24)
	parsed := multiPageDoc(t, []string{
		strings.TrimSpace(pageText),
		strings.TrimSpace(pageText),
		strings.TrimSpace(pageText),
	})

	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})
	chunks := c.ChunkWithPages(parsed)
	require.NotEmpty(t, chunks)

	straddled := false
	for _, chunk := range chunks {
		require.NotEmpty(t, chunk.PageNumbers)
		assert.Contains(t, chunk.PageNumbers, chunk.PrimaryPage)
		if len(chunk.PageNumbers) > 1 {
			straddled = true
		}
	}
	assert.True(t, straddled, "at least one chunk should span a page boundary")
}

func TestChunkWithPagesSinglePage(t *testing.T) {
	parsed := multiPageDoc(t, []string{"a short single page document"})

	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})
	chunks := c.ChunkWithPages(parsed)

	require.Len(t, chunks, 1)
	assert.Equal(t, []int{1}, chunks[0].PageNumbers)
	assert.Equal(t, 1, chunks[0].PrimaryPage)
}

func TestChunkWithPagesRepeatedContent(t *testing.T) {
	// 两页内容完全相同:游标单调前移保证后面的块匹配到后一页
	page := "identical content repeated across pages for the cursor test"
	parsed := multiPageDoc(t, []string{page, page})

	c := NewChunker(&ChunkerConfig{ChunkSize: len(page), ChunkOverlap: 0})
	chunks := c.ChunkWithPages(parsed)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].PrimaryPage)
	assert.Equal(t, 2, chunks[1].PrimaryPage)
}

func TestChunkWithPagesPrimaryIsMaxOverlap(t *testing.T) {
	// 块的大部分字符落在第 2 页
	parsed := multiPageDoc(t, []string{
		strings.Repeat("a", 20),
		strings.Repeat("b", 200),
	})

	c := NewChunker(&ChunkerConfig{ChunkSize: 300, ChunkOverlap: 0})
	chunks := c.ChunkWithPages(parsed)
	require.Len(t, chunks, 1)

	assert.ElementsMatch(t, []int{1, 2}, chunks[0].PageNumbers)
	assert.Equal(t, 2, chunks[0].PrimaryPage)
}

func TestSearchText(t *testing.T) {
	assert.Equal(t, "short", SearchText("  short  "))

	long := strings.Repeat("a", 200)
	assert.Len(t, SearchText(long), 150)
	assert.Equal(t, long[:150], SearchText(long))
}
