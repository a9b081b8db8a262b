package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	// BodyElement 承载记录的body元素名
	BodyElement = "body"

	// DefaultMaxEnvelopeBytes head和tail各自允许的最大读取量
	DefaultMaxEnvelopeBytes int64 = 16 << 20

	// initialTailWindow 反向查找tail的初始窗口
	initialTailWindow int64 = 64 << 10

	bodyCloseMarker = "</" + BodyElement
)

// Envelope 文档的结构外壳
// Head以body起始标记所在行结束：只包含标记之后同一行的空白和一个换行符，
// 下一行的缩进属于第一个记录。Tail从body结束标记所在行的缩进开始
type Envelope struct {
	Head     string
	Tail     string
	Encoding Encoding
}

// HeadBytes head编码后的字节数
func (e Envelope) HeadBytes() int64 {
	return e.Encoding.EncodedLen(e.Head)
}

// TailBytes tail编码后的字节数
func (e Envelope) TailBytes() int64 {
	return e.Encoding.EncodedLen(e.Tail)
}

// EnvelopeOptions 外壳提取配置
type EnvelopeOptions struct {
	MaxBytes int64 // head/tail查找的读取上限（0表示使用默认值）
}

func (o EnvelopeOptions) maxBytes() int64 {
	if o.MaxBytes <= 0 {
		return DefaultMaxEnvelopeBytes
	}
	return o.MaxBytes
}

// ExtractEnvelope 从输入中提取head和tail
// 两次有界读取都通过ReaderAt完成，不影响后续的顺序扫描
func ExtractEnvelope(r io.ReaderAt, size int64, enc Encoding, opts EnvelopeOptions) (Envelope, error) {
	head, err := extractHead(r, size, enc, opts.maxBytes())
	if err != nil {
		return Envelope{}, err
	}

	tail, err := extractTail(r, size, enc, opts.maxBytes())
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Head: head, Tail: tail, Encoding: enc}, nil
}

// extractHead 用XML分词器定位第一层的body起始标签
// head延伸到该行结尾（含换行符）
func extractHead(r io.ReaderAt, size int64, enc Encoding, limit int64) (string, error) {
	bom := int64(len(enc.BOM()))
	if size < bom {
		return "", ErrHeadNotFound
	}

	cr := &captureReader{
		r:     enc.NewReader(io.NewSectionReader(r, bom, size-bom)),
		limit: limit,
		// 透传编码的字节不一定是UTF-8，分词器只看到ASCII占位符
		mask: enc.Transparent(),
	}

	dec := xml.NewDecoder(cr)
	dec.Strict = false
	// 输入已解码为UTF-8，声明中的编码不需要再转换
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) {
		return in, nil
	}

	depth := 0
	for {
		tok, err := dec.RawToken()
		if err != nil {
			if cr.err != nil && !errors.Is(cr.err, io.EOF) && !errors.Is(cr.err, errCaptureLimit) {
				return "", fmt.Errorf("failed to read document head: %w", cr.err)
			}
			if errors.Is(cr.err, errCaptureLimit) {
				return "", fmt.Errorf("%w within %d bytes", ErrHeadNotFound, limit)
			}
			if errors.Is(err, io.EOF) {
				return "", ErrHeadNotFound
			}
			return "", fmt.Errorf("%w: %v", ErrHeadNotFound, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 1 && t.Name.Local == BodyElement {
				end := cr.extendLine(int(dec.InputOffset()))
				return string(cr.buf[:end]), nil
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
}

// extractTail 从文件末尾按倍增窗口反向查找body结束标签
func extractTail(r io.ReaderAt, size int64, enc Encoding, limit int64) (string, error) {
	dataStart := int64(len(enc.BOM()))
	unit := enc.unitSize()
	window := initialTailWindow
	if window > limit {
		window = limit
	}

	for {
		start := size - window
		if start < dataStart {
			start = dataStart
		}
		// 对齐到编码单元
		if rem := (start - dataStart) % unit; rem != 0 {
			start += unit - rem
		}

		buf := make([]byte, size-start)
		n, err := r.ReadAt(buf, start)
		if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
			return "", fmt.Errorf("failed to read document tail: %w", err)
		}

		text, err := enc.DecodeBytes(buf)
		if err != nil {
			return "", fmt.Errorf("failed to decode document tail: %w", err)
		}

		if i := lastBodyClose(text); i >= 0 {
			j := i
			for j > 0 && (text[j-1] == ' ' || text[j-1] == '\t') {
				j--
			}
			// 缩进可能越过窗口起点，扩大窗口重试
			if j > 0 || start == dataStart {
				return text[j:], nil
			}
		}

		if start == dataStart || window >= limit {
			return "", fmt.Errorf("%w within %d bytes", ErrTailNotFound, limit)
		}

		window *= 2
		if window > limit {
			window = limit
		}
	}
}

// bodyCloseIndex 返回s中第一个body结束标签的位置，不存在时返回-1
func bodyCloseIndex(s string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], bodyCloseMarker)
		if i < 0 {
			return -1
		}
		i += offset
		if isCloseTag(s[i+len(bodyCloseMarker):]) {
			return i
		}
		offset = i + len(bodyCloseMarker)
	}
}

// lastBodyClose 返回s中最后一个body结束标签的位置
func lastBodyClose(s string) int {
	end := len(s)
	for end > 0 {
		i := strings.LastIndex(s[:end], bodyCloseMarker)
		if i < 0 {
			return -1
		}
		if isCloseTag(s[i+len(bodyCloseMarker):]) {
			return i
		}
		end = i
	}
	return -1
}

// isCloseTag 判断标签名之后是否为可选空白加'>'
func isCloseTag(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '>':
			return true
		default:
			return false
		}
	}
	return false
}

var errCaptureLimit = errors.New("envelope read limit reached")

// maskByte 非ASCII字节的占位符，是合法的名称和文本字符
const maskByte = 'x'

// captureReader 记录读取过的全部字节，超过limit后停止
// mask为true时交给调用方的字节中>=0x80的都替换为占位符，
// buf保留原始字节，偏移量一一对应
type captureReader struct {
	r     io.Reader
	buf   []byte
	limit int64
	mask  bool
	err   error
}

func (c *captureReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	remaining := c.limit - int64(len(c.buf))
	if remaining <= 0 {
		c.err = errCaptureLimit
		return 0, c.err
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := c.r.Read(p)
	c.buf = append(c.buf, p[:n]...)
	if c.mask {
		for i := range p[:n] {
			if p[i] >= utf8.RuneSelf {
				p[i] = maskByte
			}
		}
	}
	if err != nil {
		c.err = err
	}
	return n, err
}

// extendLine 从pos开始跳过行尾空白和一个换行符，返回head的结束位置
func (c *captureReader) extendLine(pos int) int {
	for {
		if pos >= len(c.buf) && !c.more() {
			return pos
		}
		switch c.buf[pos] {
		case ' ', '\t', '\r':
			pos++
		case '\n':
			return pos + 1
		default:
			return pos
		}
	}
}

// more 继续读取一小段数据到缓冲区
func (c *captureReader) more() bool {
	p := make([]byte, 512)
	n, _ := c.Read(p)
	return n > 0
}
