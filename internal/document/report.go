package document

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Part 一个输出分片的信息
type Part struct {
	Index   int    `yaml:"index"`
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Bytes   int64  `yaml:"bytes"`
	Lines   int    `yaml:"lines"`
	Records int    `yaml:"records"`
}

// Report 一次分割运行的结果
type Report struct {
	RunID      string    `yaml:"run_id"`
	Input      string    `yaml:"input"`
	Encoding   string    `yaml:"encoding"`
	Threshold  int64     `yaml:"threshold"`
	HeadBytes  int64     `yaml:"head_bytes"`
	TailBytes  int64     `yaml:"tail_bytes"`
	Parts      []Part    `yaml:"parts"`
	Lines      int       `yaml:"lines"`
	Records    int       `yaml:"records"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
}

func (r *Report) add(p Part) {
	r.Parts = append(r.Parts, p)
	r.Lines += p.Lines
	r.Records += p.Records
}

// TotalBytes 所有分片的字节数之和
func (r *Report) TotalBytes() int64 {
	var total int64
	for _, p := range r.Parts {
		total += p.Bytes
	}
	return total
}

// Duration 运行耗时
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// WriteYAML 以YAML格式输出报告
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}
