package biz

import (
	"strings"

	"github.com/kart-io/docchat/internal/model"
)

// defaultSeparators 按优先级排列的分隔符层级：段落、换行、
// 句末空格、普通空格，最后退化为按字符硬切。
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// searchTextLen 高亮前缀长度。SearchText 必须是块内容自身的前缀，
// 不得取自其他块。
const searchTextLen = 150

// ChunkerConfig 分块器配置。
type ChunkerConfig struct {
	// ChunkSize 单块最大字符数。
	ChunkSize int
	// ChunkOverlap 相邻块的重叠字符数。
	ChunkOverlap int
	// Separators 分隔符层级，为空时使用默认层级。
	Separators []string
}

// PagedChunk 带页面归属的文本块。
type PagedChunk struct {
	// Text 块文本（含重叠前缀）。
	Text string
	// PageNumbers 块覆盖的页码，非空。
	PageNumbers []int
	// PrimaryPage 与块字符重叠最多的页，平局取先出现的页。
	PrimaryPage int
}

// Chunker 将文本切分为带重叠的块，并标注页面归属。
type Chunker struct {
	config *ChunkerConfig
}

// NewChunker 创建分块器实例。
func NewChunker(config *ChunkerConfig) *Chunker {
	if len(config.Separators) == 0 {
		config.Separators = defaultSeparators
	}
	return &Chunker{config: config}
}

// Chunk 切分文本并应用重叠前缀。
func (c *Chunker) Chunk(text string) []string {
	raw := c.splitRecursive(text, c.config.Separators)
	return c.applyOverlap(raw)
}

// ChunkWithPages 切分文本并将每个块映射回其覆盖的页面。
// 块起点通过单调前移的游标在原文中正向查找定位，避免重复内容
// 和重叠前缀匹配到更早的出现位置。
func (c *Chunker) ChunkWithPages(parsed *model.ParsedDocument) []*PagedChunk {
	raw := c.splitRecursive(parsed.FullText, c.config.Separators)
	if len(raw) == 0 {
		return nil
	}

	chunks := make([]*PagedChunk, 0, len(raw))
	cursor := 0
	for i, rawChunk := range raw {
		overlapLen := 0
		text := rawChunk
		if i > 0 && c.config.ChunkOverlap > 0 {
			prev := raw[i-1]
			overlapLen = c.config.ChunkOverlap
			if overlapLen > len(prev) {
				overlapLen = len(prev)
			}
			text = prev[len(prev)-overlapLen:] + rawChunk
		}

		// 在原文中定位未加重叠的原始块
		start := strings.Index(parsed.FullText[cursor:], rawChunk)
		if start < 0 {
			// 防御分支：定位失败时保持游标不动，归属第 1 页
			chunks = append(chunks, &PagedChunk{
				Text:        text,
				PageNumbers: []int{1},
				PrimaryPage: 1,
			})
			continue
		}
		start += cursor
		end := start + len(rawChunk)
		// 原始块在原文中互不重叠且有序，游标推进到块尾，
		// 重复内容不会匹配到更早的出现位置
		cursor = end

		// 块跨度包含重叠前缀覆盖的字符区间
		spanStart := start - overlapLen
		if spanStart < 0 {
			spanStart = 0
		}

		pages, primary := attributePages(parsed.Pages, spanStart, end)
		chunks = append(chunks, &PagedChunk{
			Text:        text,
			PageNumbers: pages,
			PrimaryPage: primary,
		})
	}

	return chunks
}

// SearchText 返回块内容的高亮前缀（≤150 字符，去除首尾空白）。
func SearchText(content string) string {
	if len(content) > searchTextLen {
		content = content[:searchTextLen]
	}
	return strings.TrimSpace(content)
}

// splitRecursive 按分隔符层级递归切分。
// 贪心地向缓冲区累积片段，超出大小限制时落盘当前块；
// 超长片段降级到下一层分隔符继续切分。
func (c *Chunker) splitRecursive(text string, separators []string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.config.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return c.hardSplit(text)
	}

	sep := separators[0]
	if sep == "" {
		return c.hardSplit(text)
	}

	pieces := strings.Split(text, sep)
	var chunks []string
	var buffer string

	flush := func() {
		if trimmed := strings.TrimSpace(buffer); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		buffer = ""
	}

	for _, piece := range pieces {
		candidate := len(buffer) + len(sep) + len(piece)
		if buffer == "" {
			candidate = len(piece)
		}

		if candidate <= c.config.ChunkSize {
			if buffer == "" {
				buffer = piece
			} else {
				buffer += sep + piece
			}
			continue
		}

		flush()
		if len(piece) > c.config.ChunkSize {
			chunks = append(chunks, c.splitRecursive(piece, separators[1:])...)
		} else {
			buffer = piece
		}
	}
	flush()

	return chunks
}

// hardSplit 按字符硬切，最后的兜底层级。
func (c *Chunker) hardSplit(text string) []string {
	size := c.config.ChunkSize
	var chunks []string
	for len(text) > 0 {
		if len(text) <= size {
			chunks = append(chunks, text)
			break
		}
		chunks = append(chunks, text[:size])
		text = text[size:]
	}
	return chunks
}

// applyOverlap 为第 i>0 个块添加上一个原始块的尾部重叠前缀。
// 简单的字符级重叠，可能在重叠边界处截断单词。
func (c *Chunker) applyOverlap(raw []string) []string {
	if len(raw) == 0 || c.config.ChunkOverlap <= 0 {
		return raw
	}

	chunks := make([]string, len(raw))
	chunks[0] = raw[0]
	for i := 1; i < len(raw); i++ {
		prev := raw[i-1]
		overlap := c.config.ChunkOverlap
		if overlap > len(prev) {
			overlap = len(prev)
		}
		chunks[i] = prev[len(prev)-overlap:] + raw[i]
	}
	return chunks
}

// attributePages 返回跨度 [start, end) 覆盖的页码集合和主页面。
// 主页面为与跨度字符重叠最多的页，平局取先出现的页；
// 无任何页面匹配时默认第 1 页。
func attributePages(pages []model.PageContent, start, end int) ([]int, int) {
	var covered []int
	primary := 0
	maxOverlap := 0

	for _, page := range pages {
		overlapStart := max(start, page.CharStart)
		overlapEnd := min(end, page.CharEnd)
		if overlapStart >= overlapEnd {
			continue
		}
		covered = append(covered, page.Page)
		if overlap := overlapEnd - overlapStart; overlap > maxOverlap {
			maxOverlap = overlap
			primary = page.Page
		}
	}

	if len(covered) == 0 {
		return []int{1}, 1
	}
	return covered, primary
}
