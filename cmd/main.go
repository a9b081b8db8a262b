package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyerfyer/tmx-splitter/internal/services"
)

// 退出码
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitEnvelope   = 3
	exitCanceled   = 130
)

func main() {
	// 收到中断信号时取消上下文，让分割器关闭当前打开的文件
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tmxsplit: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode 根据错误分类返回退出码
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	switch services.Classify(err) {
	case services.KindValidation:
		return exitValidation
	case services.KindEnvelope:
		return exitEnvelope
	case services.KindCanceled:
		return exitCanceled
	default:
		return exitFailure
	}
}
