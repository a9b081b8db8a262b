package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyerfyer/tmx-splitter/config"
	"github.com/fyerfyer/tmx-splitter/internal/document"
	"github.com/fyerfyer/tmx-splitter/internal/logger"
	"github.com/fyerfyer/tmx-splitter/internal/services"
	"github.com/fyerfyer/tmx-splitter/pkg/bytesize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

// rootFlags 全局参数
type rootFlags struct {
	config string
}

// newRootCmd 创建根命令，根命令本身执行分割
func newRootCmd() *cobra.Command {
	var opts rootFlags

	root := &cobra.Command{
		Use:   "tmxsplit <input.tmx>",
		Short: "Split a large TMX file into smaller valid TMX files",
		Long: `tmxsplit splits a large TMX translation memory into several smaller,
independently valid TMX files of roughly equal size.

The input is streamed line by line; a new part is started at the first
</tu> boundary after the threshold is crossed. Every part repeats the
document header and trailer and keeps the input's encoding.`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, opts, args[0])
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.config, "config", "c", "", "Path to config file (default ./tmxsplit.yaml if present)")
	pf.String("log-level", "info", "Log level (debug/info/warn/error)")
	pf.String("log-format", "text", "Log format (text/json)")
	pf.String("log-file", "", "Also write logs to this file (rotated)")

	addSplitFlags(root.Flags())

	root.AddCommand(newSplitCmd(&opts))
	root.AddCommand(newInspectCmd(&opts))
	root.AddCommand(newVersionCmd())

	return root
}

// addSplitFlags 注册分割相关的参数
func addSplitFlags(f *pflag.FlagSet) {
	f.StringP("threshold", "t", "50MB", "Split threshold, e.g. 64KB, 50MB, 1GB (minimum 64KB)")
	f.StringP("output-dir", "o", "", "Output directory (default: the input's directory)")
	f.Int64("max-envelope-bytes", document.DefaultMaxEnvelopeBytes, "Maximum bytes read while locating the header and trailer")
	f.String("report", "", "Write a YAML run report to this path")
	f.Bool("clean", false, "Remove parts left by a previous run before splitting")
}

// newSplitCmd 与根命令相同的分割子命令
func newSplitCmd(opts *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <input.tmx>",
		Short: "Split a TMX file (same as running tmxsplit without a subcommand)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, *opts, args[0])
		},
	}

	addSplitFlags(cmd.Flags())
	return cmd
}

// loadConfig 加载配置并初始化日志
func loadConfig(cmd *cobra.Command, opts rootFlags) (*config.Config, func() error, error) {
	cfg, err := config.Load(opts.config, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	closeLog, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	return cfg, closeLog, nil
}

// runSplit 执行分割
func runSplit(cmd *cobra.Command, opts rootFlags, input string) error {
	cfg, closeLog, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	defer closeLog()

	threshold, err := bytesize.Parse(cfg.Split.Threshold)
	if err != nil {
		return &services.SplitError{Stage: services.StageValidate, Input: input, Err: err}
	}

	outputDir := cfg.Split.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(input)
	}

	svc := services.NewSplitService(
		services.WithLogger(logger.GetLogger()),
		services.WithEnvelopeLimit(cfg.Split.MaxEnvelopeBytes),
		services.WithCleanup(cfg.Split.Clean),
	)

	report, err := svc.Split(cmd.Context(), input, outputDir, threshold)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range report.Parts {
		fmt.Fprintf(out, "%s\t%s\t%d records\n", p.Path, bytesize.Format(p.Bytes), p.Records)
	}

	if cfg.Split.Report != "" {
		if err := writeReport(cfg.Split.Report, report); err != nil {
			return err
		}
	}

	return nil
}

// writeReport 把运行报告写入文件
func writeReport(path string, report *document.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer file.Close()

	if err := report.WriteYAML(file); err != nil {
		return err
	}
	return file.Close()
}

// newInspectCmd 显示输入的编码和外壳信息
func newInspectCmd(opts *rootFlags) *cobra.Command {
	var showEnvelope bool

	cmd := &cobra.Command{
		Use:   "inspect <input.tmx>",
		Short: "Show the detected encoding and document envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(cmd, *opts)
			if err != nil {
				return err
			}
			defer closeLog()

			svc := services.NewSplitService(
				services.WithLogger(logger.GetLogger()),
				services.WithEnvelopeLimit(cfg.Split.MaxEnvelopeBytes),
			)
			info, err := svc.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "input:    %s\n", info.Input)
			fmt.Fprintf(out, "size:     %s\n", bytesize.Format(info.Size))
			fmt.Fprintf(out, "encoding: %s\n", info.Encoding)
			fmt.Fprintf(out, "head:     %s\n", bytesize.Format(info.Envelope.HeadBytes()))
			fmt.Fprintf(out, "tail:     %s\n", bytesize.Format(info.Envelope.TailBytes()))
			if showEnvelope {
				fmt.Fprintf(out, "\n--- head ---\n%s\n--- tail ---\n%s\n", info.Envelope.Head, info.Envelope.Tail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showEnvelope, "show", false, "Print the extracted head and tail text")
	return cmd
}

// newVersionCmd 显示版本信息
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tmxsplit version: %s\n", version)
		},
	}
}
