// Package bytesize 解析和格式化字节大小
// KB/MB/GB/TB均按二进制倍数（2^10、2^20、2^30、2^40）计算
package bytesize

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// binaryUnits 单位写法到humanize二进制单位的映射
var binaryUnits = map[string]string{
	"":    "B",
	"B":   "B",
	"K":   "KiB",
	"KB":  "KiB",
	"KIB": "KiB",
	"M":   "MiB",
	"MB":  "MiB",
	"MIB": "MiB",
	"G":   "GiB",
	"GB":  "GiB",
	"GIB": "GiB",
	"T":   "TiB",
	"TB":  "TiB",
	"TIB": "TiB",
}

// Parse 解析"64KB"、"50 MB"、"1048576"这样的大小写法
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if i < 0 {
		i = len(s)
	}
	number, suffix := s[:i], strings.ToUpper(strings.TrimSpace(s[i:]))
	if number == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	unit, ok := binaryUnits[suffix]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit %q", s, suffix)
	}

	n, err := humanize.ParseBytes(number + " " + unit)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}

	return int64(n), nil
}

// Format 以二进制单位格式化字节数，例如"64 KiB"
func Format(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
