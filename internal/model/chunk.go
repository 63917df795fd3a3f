package model

// PageContent 表示解析出的单页文本及其在全文中的字符跨度。
// 仅在摄取管道内部流转，不持久化。
type PageContent struct {
	// Page 页码，从 1 开始。
	Page int
	// Text 该页清洗后的文本。
	Text string
	// CharStart 该页在全文中的起始字符偏移（含）。
	CharStart int
	// CharEnd 该页在全文中的结束字符偏移（不含）。
	CharEnd int
}

// ParsedDocument 解析器输出。
type ParsedDocument struct {
	// FullText 清洗后的全文，页与页之间以单个分隔符连接。
	FullText string
	// Pages 按页序排列的页内容，跨度对齐 FullText。
	Pages []PageContent
	// TotalPages 总页数。
	TotalPages int
}

// Chunk 表示一个可检索的知识块。
// 一次摄取运行创建后不再原地更新，重新摄取时整体删除重建。
type Chunk struct {
	// DocumentID 所属文档 ID。
	DocumentID string
	// ProductID 所属产品（冗余存储，加速范围过滤）。
	ProductID string
	// Index 块在文档内的顺序。
	Index int
	// Content 块文本。
	Content string
	// Embedding 嵌入向量。
	Embedding []float32
	// Filename 源文档文件名。
	Filename string
	// ObjectKey 源文档在对象存储中的位置。
	ObjectKey string
	// PageNumbers 块覆盖的页码，非空。
	PageNumbers []int
	// PrimaryPage 最能代表该块的页码，必属于 PageNumbers。
	PrimaryPage int
	// SearchText 块内容的短前缀（≤150 字符），用于高亮匹配。
	SearchText string
}

// 检索策略标识。
const (
	RetrievalStrategyVector  = "vector"
	RetrievalStrategyKeyword = "keyword"
)

// RetrievalResult 表示一条检索结果。
// Score 的量纲随 Strategy 而异：vector 为余弦相似度，keyword 为
// 关键词覆盖率。两种分数不做归一化，调用方不应跨策略比较。
type RetrievalResult struct {
	// ChunkID 向量存储中的块 ID。
	ChunkID int64 `json:"chunk_id"`
	// DocumentID 所属文档 ID。
	DocumentID string `json:"document_id"`
	// Filename 源文档文件名。
	Filename string `json:"filename"`
	// ObjectKey 源文档在对象存储中的位置，调用方可据此直接取回源文件。
	ObjectKey string `json:"object_key"`
	// Content 块文本。
	Content string `json:"content"`
	// SearchText 高亮匹配用前缀。
	SearchText string `json:"search_text"`
	// Score 相似度分数，量纲见 Strategy。
	Score float32 `json:"score"`
	// PageNumbers 块覆盖的页码。
	PageNumbers []int `json:"page_numbers,omitempty"`
	// PrimaryPage 引用标注页。
	PrimaryPage int `json:"primary_page,omitempty"`
	// Strategy 产生该结果的检索策略（vector 或 keyword）。
	Strategy string `json:"strategy"`
}
