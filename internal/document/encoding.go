package document

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// Encoding 输入文档的文本编码
type Encoding int

const (
	// Default 平台默认编码，按字节透传
	Default Encoding = iota
	// UTF8 带BOM的UTF-8
	UTF8
	// UTF16LE 小端UTF-16
	UTF16LE
	// UTF16BE 大端UTF-16
	UTF16BE
	// UTF32 大端UTF-32（00 00 FE FF）
	UTF32
	// UTF7 UTF-7，按字节透传
	UTF7
)

// bomSignature BOM签名表中的一项
type bomSignature struct {
	prefix   []byte
	encoding Encoding
}

// bomTable 按顺序匹配的BOM签名表
var bomTable = []bomSignature{
	{prefix: []byte{0xEF, 0xBB, 0xBF}, encoding: UTF8},
	{prefix: []byte{0xFE, 0xFF}, encoding: UTF16BE},
	{prefix: []byte{0xFF, 0xFE}, encoding: UTF16LE},
	{prefix: []byte{0x00, 0x00, 0xFE, 0xFF}, encoding: UTF32},
	{prefix: []byte{0x2B, 0x2F, 0x76}, encoding: UTF7},
}

// DetectEncoding 根据文件前4个字节的BOM判断编码
// 文件不足4字节或没有匹配的BOM时返回Default，不会返回错误
func DetectEncoding(r io.ReaderAt, size int64) Encoding {
	if size < 4 {
		return Default
	}

	prefix := make([]byte, 4)
	if _, err := r.ReadAt(prefix, 0); err != nil && err != io.EOF {
		return Default
	}

	for _, sig := range bomTable {
		if bytes.HasPrefix(prefix, sig.prefix) {
			return sig.encoding
		}
	}

	return Default
}

// String 返回编码名称
func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16LE:
		return "utf-16le"
	case UTF16BE:
		return "utf-16be"
	case UTF32:
		return "utf-32be"
	case UTF7:
		return "utf-7"
	default:
		return "default"
	}
}

// Transparent 是否按字节透传
// 透传编码的BOM作为文本的一部分保留在head中
func (e Encoding) Transparent() bool {
	return e.codec() == nil
}

// BOM 返回每个输出文件开头需要写入的BOM
// 透传编码返回nil，它们的BOM已经包含在文本里
func (e Encoding) BOM() []byte {
	switch e {
	case UTF16LE:
		return []byte{0xFF, 0xFE}
	case UTF16BE:
		return []byte{0xFE, 0xFF}
	case UTF32:
		return []byte{0x00, 0x00, 0xFE, 0xFF}
	default:
		return nil
	}
}

// unitSize 编码单元的字节数
func (e Encoding) unitSize() int64 {
	switch e {
	case UTF16LE, UTF16BE:
		return 2
	case UTF32:
		return 4
	default:
		return 1
	}
}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case UTF32:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	default:
		return nil
	}
}

// NewReader 将已跳过BOM的原始字节流解码为UTF-8文本流
// UTF-16/32中孤立的代理项和无效编码单元会被替换为U+FFFD，这类输入写出时不能保证逐字节一致
func (e Encoding) NewReader(r io.Reader) io.Reader {
	c := e.codec()
	if c == nil {
		return r
	}
	return transform.NewReader(r, c.NewDecoder())
}

// NewWriter 将UTF-8文本编码后写入w
// Close只刷新编码器，不关闭w
func (e Encoding) NewWriter(w io.Writer) io.WriteCloser {
	c := e.codec()
	if c == nil {
		return nopWriteCloser{w}
	}
	return transform.NewWriter(w, c.NewEncoder())
}

// DecodeBytes 解码一段原始字节
func (e Encoding) DecodeBytes(b []byte) (string, error) {
	c := e.codec()
	if c == nil {
		return string(b), nil
	}
	out, err := c.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodedLen 返回文本编码后的字节数
func (e Encoding) EncodedLen(s string) int64 {
	switch e {
	case UTF16LE, UTF16BE:
		var n int64
		for _, r := range s {
			if r >= 0x10000 {
				n += 4
			} else {
				n += 2
			}
		}
		return n
	case UTF32:
		return 4 * int64(utf8.RuneCountInString(s))
	default:
		return int64(len(s))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
