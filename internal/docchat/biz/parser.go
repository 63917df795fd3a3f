package biz

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
)

// pageSeparator 连接各页文本的分隔符，恰好占一个字符，
// 保证页跨度在全文中保持对齐。
const pageSeparator = "\n"

// lineBreakThreshold PDF 文本段落垂直坐标变化超过该值时视为换行。
const lineBreakThreshold = 2.0

// Parser 从二进制文档中提取纯文本，保留页边界。
type Parser struct{}

// NewParser 创建解析器实例。
func NewParser() *Parser {
	return &Parser{}
}

// Parse 提取全文，丢弃页信息。
func (p *Parser) Parse(data []byte, format string) (string, error) {
	parsed, err := p.ParseWithPages(data, format)
	if err != nil {
		return "", err
	}
	return parsed.FullText, nil
}

// ParseWithPages 提取全文并标注每页在全文中的字符跨度。
// DOCX/TXT/MD 没有原生分页，整个文档视为第 1 页。
func (p *Parser) ParseWithPages(data []byte, format string) (*model.ParsedDocument, error) {
	var pageTexts []string
	var err error

	switch format {
	case model.FormatPDF:
		pageTexts, err = extractPDFPages(data)
	case model.FormatDOCX:
		var text string
		text, err = extractDOCXText(data)
		pageTexts = []string{text}
	case model.FormatTXT, model.FormatMD:
		pageTexts = []string{string(data)}
	default:
		return nil, errors.ErrUnsupportedFormat.WithMessagef("unsupported format: %s", format)
	}
	if err != nil {
		return nil, errors.ErrParseFailure.WithCause(err)
	}

	return assemblePages(pageTexts), nil
}

// assemblePages 清洗各页文本并拼装为带跨度标注的全文。
// 先清洗再计算跨度，保证跨度对齐清洗后的文本。
func assemblePages(pageTexts []string) *model.ParsedDocument {
	pages := make([]model.PageContent, 0, len(pageTexts))
	var full strings.Builder
	offset := 0
	for i, raw := range pageTexts {
		text := cleanText(raw)
		if i > 0 {
			full.WriteString(pageSeparator)
			offset++
		}
		pages = append(pages, model.PageContent{
			Page:      i + 1,
			Text:      text,
			CharStart: offset,
			CharEnd:   offset + len(text),
		})
		full.WriteString(text)
		offset += len(text)
	}

	return &model.ParsedDocument{
		FullText:   full.String(),
		Pages:      pages,
		TotalPages: len(pages),
	}
}

// FormatFromContentType 从 MIME 类型推断文档格式，
// MIME 不明确时回退到文件扩展名。
func FormatFromContentType(contentType, filename string) (string, bool) {
	switch {
	case strings.Contains(contentType, "pdf"):
		return model.FormatPDF, true
	case strings.Contains(contentType, "officedocument.wordprocessingml"),
		strings.Contains(contentType, "msword"):
		return model.FormatDOCX, true
	case strings.Contains(contentType, "text/markdown"):
		return model.FormatMD, true
	case strings.Contains(contentType, "text/plain"):
		return model.FormatTXT, true
	}

	switch {
	case strings.HasSuffix(filename, ".pdf"):
		return model.FormatPDF, true
	case strings.HasSuffix(filename, ".docx"):
		return model.FormatDOCX, true
	case strings.HasSuffix(filename, ".md"), strings.HasSuffix(filename, ".markdown"):
		return model.FormatMD, true
	case strings.HasSuffix(filename, ".txt"):
		return model.FormatTXT, true
	}

	return "", false
}

// extractPDFPages 按物理页提取 PDF 文本。
// 文本段落的垂直坐标跳变超过阈值时插入换行，保留页内换行结构。
func extractPDFPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([]string, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		var sb strings.Builder
		lastY := math.Inf(1)
		for _, t := range page.Content().Text {
			if math.Abs(t.Y-lastY) > lineBreakThreshold && sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(t.S)
			lastY = t.Y
		}
		pages = append(pages, sb.String())
	}

	return pages, nil
}

// docxDocument word/document.xml 中需要的最小结构。
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

// extractDOCXText 从 DOCX（zip 包中的 word/document.xml）提取段落文本。
func extractDOCXText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read document.xml: %w", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Texts {
				line.WriteString(t)
			}
		}
		if line.Len() > 0 {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(line.String())
		}
	}

	return sb.String(), nil
}

var (
	spaceRunRegex   = regexp.MustCompile(`[ \t]+`)
	newlineRunRegex = regexp.MustCompile(`\n{3,}`)
)

// cleanText 清洗提取出的文本：连续空格折叠为一个，
// 三个以上连续换行折叠为两个，去除首尾空白。
func cleanText(text string) string {
	text = spaceRunRegex.ReplaceAllString(text, " ")
	text = newlineRunRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
