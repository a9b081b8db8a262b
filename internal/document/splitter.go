package document

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/tmx-splitter/pkg/storage"
)

const (
	// RecordBoundary 记录结束标记，只有写完包含它的行之后才能切分
	RecordBoundary = "</tu>"

	// MinThreshold 分割阈值下限（64KiB）
	MinThreshold int64 = 64 << 10

	ioBufferSize = 64 << 10
)

// PartName 返回第n个输出文件的名称：<输入文件名>.split.<n>.tmx
func PartName(input string, n int) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s.split.%d.tmx", base, n)
}

// Observer 分割过程的观察者
type Observer interface {
	// PartStarted 新的输出文件已创建
	PartStarted(index int, name string)
	// PartFinished 输出文件已写完并关闭
	PartFinished(part Part)
}

// NopObserver 空观察者
type NopObserver struct{}

func (NopObserver) PartStarted(int, string) {}
func (NopObserver) PartFinished(Part)       {}

// Splitter 流式分割器
// 逐行复制输入，超过阈值后在下一个记录边界处切换输出文件
type Splitter struct {
	storage   storage.Storage // 输出文件存储
	input     string          // 输入文件名，用于生成输出文件名
	threshold int64           // 分割阈值（字节）
	observer  Observer        // 进度观察者
	runID     string          // 运行ID
}

// SplitterOption 分割器配置选项
type SplitterOption func(*Splitter)

// WithObserver 设置观察者
func WithObserver(o Observer) SplitterOption {
	return func(s *Splitter) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithRunID 设置写入报告的运行ID
func WithRunID(id string) SplitterOption {
	return func(s *Splitter) {
		s.runID = id
	}
}

// NewSplitter 创建分割器
func NewSplitter(store storage.Storage, input string, threshold int64, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		storage:   store,
		input:     input,
		threshold: threshold,
		observer:  NopObserver{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Split 对输入做一次顺序扫描并写出所有分片
// in必须从文件起始位置（含BOM）开始
func (s *Splitter) Split(ctx context.Context, in io.Reader, env Envelope) (*Report, error) {
	if s.threshold < MinThreshold {
		return nil, fmt.Errorf("%w: %d < %d", ErrThresholdTooSmall, s.threshold, MinThreshold)
	}

	enc := env.Encoding
	if bom := int64(len(enc.BOM())); bom > 0 {
		if _, err := io.CopyN(io.Discard, in, bom); err != nil {
			return nil, fmt.Errorf("failed to skip byte order mark: %w", err)
		}
	}

	report := &Report{
		RunID:     s.runID,
		Input:     s.input,
		Encoding:  enc.String(),
		Threshold: s.threshold,
		HeadBytes: env.HeadBytes(),
		TailBytes: env.TailBytes(),
		StartedAt: time.Now(),
	}

	lines := newLineReader(bufio.NewReaderSize(enc.NewReader(in), ioBufferSize))

	// 任何退出路径上都释放当前写入器
	var cur *partWriter
	defer func() {
		if cur != nil {
			_ = cur.close()
		}
	}()

	var err error
	cur, err = s.openPart(0, enc, "")
	if err != nil {
		return nil, err
	}

	closed := false // body结束标记是否已经写出
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, ok, err := lines.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := cur.writeLine(line); err != nil {
			return nil, err
		}
		closed = closed || bodyCloseIndex(line) >= 0

		if cur.pos < s.threshold || closed {
			continue
		}

		// 写完当前记录
		exhausted := false
		for !closed && !strings.Contains(line, RecordBoundary) {
			line, ok, err = lines.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				exhausted = true
				break
			}
			if err := cur.writeLine(line); err != nil {
				return nil, err
			}
			closed = bodyCloseIndex(line) >= 0
		}
		if exhausted || closed {
			continue
		}

		// 后面没有记录时不切分，避免产生只有外壳的分片
		more, err := lines.recordsAhead()
		if err != nil {
			return nil, err
		}
		if !more {
			continue
		}

		if err := cur.write(env.Tail); err != nil {
			return nil, err
		}
		part, err := s.finishPart(cur)
		cur = nil
		if err != nil {
			return nil, err
		}
		report.add(part)

		cur, err = s.openPart(part.Index+1, enc, env.Head)
		if err != nil {
			return nil, err
		}
	}

	part, err := s.finishPart(cur)
	cur = nil
	if err != nil {
		return nil, err
	}
	report.add(part)
	report.FinishedAt = time.Now()

	return report, nil
}

// openPart 创建第index个输出文件并写入BOM和head
func (s *Splitter) openPart(index int, enc Encoding, head string) (*partWriter, error) {
	name := PartName(s.input, index)
	file, info, err := s.storage.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create part %s: %w", name, err)
	}

	buf := bufio.NewWriterSize(file, ioBufferSize)
	p := &partWriter{
		index:    index,
		info:     info,
		file:     file,
		buf:      buf,
		out:      enc.NewWriter(buf),
		encoding: enc,
	}
	s.observer.PartStarted(index, name)

	if bom := enc.BOM(); len(bom) > 0 {
		if _, err := buf.Write(bom); err != nil {
			_ = p.close()
			return nil, fmt.Errorf("failed to write byte order mark: %w", err)
		}
		p.pos += int64(len(bom))
	}
	if err := p.write(head); err != nil {
		_ = p.close()
		return nil, err
	}

	return p, nil
}

// finishPart 关闭输出文件并生成分片信息
func (s *Splitter) finishPart(p *partWriter) (Part, error) {
	if err := p.close(); err != nil {
		return Part{}, fmt.Errorf("failed to close part %s: %w", p.info.Name, err)
	}

	part := Part{
		Index:   p.index,
		Name:    p.info.Name,
		Path:    p.info.Path,
		Bytes:   p.pos,
		Lines:   p.lines,
		Records: p.records,
	}
	s.observer.PartFinished(part)
	return part, nil
}

// partWriter 当前打开的输出文件
type partWriter struct {
	index    int
	info     storage.FileInfo
	file     io.WriteCloser
	buf      *bufio.Writer
	out      io.WriteCloser
	encoding Encoding
	pos      int64 // 已写入的编码后字节数
	lines    int
	records  int
	closed   bool
}

func (p *partWriter) write(s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(p.out, s); err != nil {
		return fmt.Errorf("failed to write part %s: %w", p.info.Name, err)
	}
	p.pos += p.encoding.EncodedLen(s)
	return nil
}

func (p *partWriter) writeLine(line string) error {
	if err := p.write(line); err != nil {
		return err
	}
	p.lines++
	p.records += strings.Count(line, RecordBoundary)
	return nil
}

// close 依次刷新编码器、缓冲区并关闭文件，可重复调用
func (p *partWriter) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.out.Close(), p.buf.Flush(), p.file.Close())
}

// lineReader 按行读取解码后的文本，保留行结束符
// 支持向前查看空白行之后的第一行内容
type lineReader struct {
	r       *bufio.Reader
	pending []string
	eof     bool
}

func newLineReader(r *bufio.Reader) *lineReader {
	return &lineReader{r: r}
}

// next 返回下一行；输入结束时ok为false
func (l *lineReader) next() (string, bool, error) {
	if len(l.pending) > 0 {
		line := l.pending[0]
		l.pending = l.pending[1:]
		return line, true, nil
	}
	return l.read()
}

func (l *lineReader) read() (string, bool, error) {
	if l.eof {
		return "", false, nil
	}
	line, err := l.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, fmt.Errorf("failed to read input: %w", err)
		}
		l.eof = true
		if line == "" {
			return "", false, nil
		}
	}
	return line, true, nil
}

// recordsAhead 跳过空白行查看下一行内容
// 输入已结束或下一行是body结束标记时返回false
func (l *lineReader) recordsAhead() (bool, error) {
	for _, line := range l.pending {
		if strings.TrimSpace(line) != "" {
			return bodyCloseIndex(line) < 0, nil
		}
	}
	for {
		line, ok, err := l.read()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		l.pending = append(l.pending, line)
		if strings.TrimSpace(line) != "" {
			return bodyCloseIndex(line) < 0, nil
		}
	}
}
