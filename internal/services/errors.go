package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fyerfyer/tmx-splitter/internal/document"
)

// Stage 分割流程的阶段
type Stage string

const (
	StageValidate Stage = "validate" // 参数校验
	StageDetect   Stage = "detect"   // 打开输入并检测编码
	StageExtract  Stage = "extract"  // 提取head/tail
	StageScan     Stage = "scan"     // 顺序扫描并写出分片
)

// ErrInputIsDirectory 输入路径是目录
var ErrInputIsDirectory = errors.New("input is a directory")

// SplitError 带阶段信息的分割错误
type SplitError struct {
	Stage Stage  // 出错的阶段
	Input string // 输入文件
	Err   error  // 原始错误
}

// Error 实现error接口
func (e *SplitError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Input, e.Err)
}

// Unwrap 返回原始错误
func (e *SplitError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, input string, err error) error {
	return &SplitError{Stage: stage, Input: input, Err: err}
}

// Kind 错误分类
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindValidation Kind = "validation"
	KindEnvelope   Kind = "envelope"
	KindIO         Kind = "io"
	KindCanceled   Kind = "canceled"
)

// Classify 将错误归类，只依赖哨兵错误和标准库错误类型
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	if errors.Is(err, document.ErrThresholdTooSmall) {
		return KindValidation
	}
	if errors.Is(err, document.ErrMalformedEnvelope) {
		return KindEnvelope
	}

	var pathErr *fs.PathError
	if errors.Is(err, ErrInputIsDirectory) || errors.As(err, &pathErr) {
		return KindIO
	}

	// 其余阶段的错误都来自读写
	var splitErr *SplitError
	if errors.As(err, &splitErr) {
		if splitErr.Stage == StageValidate {
			return KindValidation
		}
		return KindIO
	}

	return KindUnknown
}
