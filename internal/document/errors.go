package document

import (
	"errors"
	"fmt"
)

var (
	// ErrThresholdTooSmall 分割阈值低于64KiB下限
	ErrThresholdTooSmall = errors.New("split threshold below minimum")

	// ErrMalformedEnvelope 无法从文档中提取head或tail
	ErrMalformedEnvelope = errors.New("malformed document envelope")

	// ErrHeadNotFound 找不到body起始标记
	ErrHeadNotFound = fmt.Errorf("%w: body open marker not found", ErrMalformedEnvelope)

	// ErrTailNotFound 找不到body结束标记
	ErrTailNotFound = fmt.Errorf("%w: body close marker not found", ErrMalformedEnvelope)
)
