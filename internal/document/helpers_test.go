package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyerfyer/tmx-splitter/pkg/storage"
	"github.com/stretchr/testify/require"
)

const testHead = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE tmx SYSTEM "tmx14.dtd">
<tmx version="1.4">
  <header creationtool="tmxsplit-test" srclang="en-US" datatype="plaintext" segtype="sentence" adminlang="en-us" o-tmf="test">
    <prop type="x-note">header &amp; notes</prop>
  </header>
  <body>
`

const testTail = "  </body>\n</tmx>\n"

// makeRecord 生成约size字节的三行翻译单元
func makeRecord(id, size int) string {
	prefix := fmt.Sprintf("    <tu tuid=\"%d\">\n      <tuv xml:lang=\"en-US\"><seg>", id)
	suffix := "</seg></tuv>\n    </tu>\n"
	fill := size - len(prefix) - len(suffix)
	if fill < 0 {
		fill = 0
	}
	return prefix + strings.Repeat(string(rune('a'+id%26)), fill) + suffix
}

// makeMultiLineRecord 生成由多行tuv组成的翻译单元
func makeMultiLineRecord(id, lines, lineSize int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    <tu tuid=\"%d\">\n", id)
	for i := 0; i < lines; i++ {
		b.WriteString("      <tuv xml:lang=\"de-DE\"><seg>")
		b.WriteString(strings.Repeat("x", lineSize))
		b.WriteString("</seg></tuv>\n")
	}
	b.WriteString("    </tu>\n")
	return b.String()
}

func buildDoc(records ...string) string {
	return testHead + strings.Join(records, "") + testTail
}

// splitResult 一次分割的结果
type splitResult struct {
	report *Report
	paths  []string
	parts  [][]byte
}

func (r splitResult) texts() []string {
	out := make([]string, len(r.parts))
	for i, p := range r.parts {
		out[i] = string(p)
	}
	return out
}

// splitFile 分割已经存在的输入文件
func splitFile(t *testing.T, input string, threshold int64) splitResult {
	t.Helper()

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: filepath.Join(t.TempDir(), "out")})
	require.NoError(t, err)

	file, err := os.Open(input)
	require.NoError(t, err)
	defer file.Close()

	info, err := file.Stat()
	require.NoError(t, err)

	enc := DetectEncoding(file, info.Size())
	env, err := ExtractEnvelope(file, info.Size(), enc, EnvelopeOptions{})
	require.NoError(t, err)

	report, err := NewSplitter(store, input, threshold).Split(context.Background(), file, env)
	require.NoError(t, err)

	res := splitResult{report: report}
	for _, p := range report.Parts {
		data, err := os.ReadFile(p.Path)
		require.NoError(t, err)
		res.paths = append(res.paths, p.Path)
		res.parts = append(res.parts, data)
	}
	return res
}

// splitBytes 把内容写入临时文件后分割
func splitBytes(t *testing.T, content []byte, threshold int64) splitResult {
	t.Helper()

	input := filepath.Join(t.TempDir(), "memory.tmx")
	require.NoError(t, os.WriteFile(input, content, 0o644))
	return splitFile(t, input, threshold)
}

// bodies 去掉每个分片的head和tail，返回中间的记录内容
func bodies(t *testing.T, parts []string, head, tail string) []string {
	t.Helper()

	out := make([]string, 0, len(parts))
	for i, p := range parts {
		require.Truef(t, strings.HasPrefix(p, head), "part %d does not start with the head", i)
		require.Truef(t, strings.HasSuffix(p, tail), "part %d does not end with the tail", i)
		out = append(out, p[len(head):len(p)-len(tail)])
	}
	return out
}
