package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fyerfyer/tmx-splitter/internal/document"
	"github.com/fyerfyer/tmx-splitter/internal/logger"
	"github.com/fyerfyer/tmx-splitter/pkg/bytesize"
	"github.com/fyerfyer/tmx-splitter/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StorageFactory 根据输出目录创建存储
type StorageFactory func(dir string) (storage.Storage, error)

// SplitService 分割服务
// 负责协调编码检测、外壳提取和流式分割
type SplitService struct {
	logger        *logrus.Logger    // 日志记录器
	envelopeLimit int64             // head/tail查找上限
	observer      document.Observer // 外部观察者
	newStorage    StorageFactory    // 输出存储工厂
	clean         bool              // 分割前删除旧分片
}

// SplitOption 分割服务配置选项
type SplitOption func(*SplitService)

// NewSplitService 创建分割服务
func NewSplitService(opts ...SplitOption) *SplitService {
	srv := &SplitService{
		logger:        logger.GetLogger(),
		envelopeLimit: document.DefaultMaxEnvelopeBytes,
		observer:      document.NopObserver{},
		newStorage:    localStorage,
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithLogger 设置日志记录器
func WithLogger(l *logrus.Logger) SplitOption {
	return func(s *SplitService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEnvelopeLimit 设置head/tail查找上限
func WithEnvelopeLimit(limit int64) SplitOption {
	return func(s *SplitService) {
		if limit > 0 {
			s.envelopeLimit = limit
		}
	}
}

// WithObserver 设置分片进度观察者
func WithObserver(o document.Observer) SplitOption {
	return func(s *SplitService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithStorageFactory 设置输出存储工厂
func WithStorageFactory(f StorageFactory) SplitOption {
	return func(s *SplitService) {
		if f != nil {
			s.newStorage = f
		}
	}
}

// WithCleanup 设置是否在分割前删除旧分片
func WithCleanup(enabled bool) SplitOption {
	return func(s *SplitService) {
		s.clean = enabled
	}
}

func localStorage(dir string) (storage.Storage, error) {
	return storage.NewLocalStorage(storage.LocalConfig{Path: dir})
}

// Split 将inputPath分割为多个分片写入outputDir
// 阈值小于64KiB时在任何I/O之前返回校验错误
func (s *SplitService) Split(ctx context.Context, inputPath, outputDir string, thresholdBytes int64) (*document.Report, error) {
	if thresholdBytes < document.MinThreshold {
		return nil, stageError(StageValidate, inputPath, fmt.Errorf("%w: %d bytes given, at least %d required",
			document.ErrThresholdTooSmall, thresholdBytes, document.MinThreshold))
	}

	runID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{
		logger.FieldRunID: runID,
		logger.FieldInput: inputPath,
	})

	file, size, err := openInput(inputPath)
	if err != nil {
		return nil, stageError(StageDetect, inputPath, err)
	}
	defer file.Close()

	enc := document.DetectEncoding(file, size)
	log.WithFields(logrus.Fields{
		logger.FieldStage:    StageDetect,
		logger.FieldEncoding: enc.String(),
		logger.FieldBytes:    size,
	}).Debug("Detected input encoding")

	env, err := document.ExtractEnvelope(file, size, enc, document.EnvelopeOptions{MaxBytes: s.envelopeLimit})
	if err != nil {
		return nil, stageError(StageExtract, inputPath, err)
	}
	log.WithFields(logrus.Fields{
		logger.FieldStage: StageExtract,
		"head_bytes":      env.HeadBytes(),
		"tail_bytes":      env.TailBytes(),
	}).Debug("Extracted document envelope")

	store, err := s.newStorage(outputDir)
	if err != nil {
		return nil, stageError(StageScan, inputPath, err)
	}
	if s.clean {
		if err := s.removeStaleParts(store, inputPath, log); err != nil {
			return nil, stageError(StageScan, inputPath, err)
		}
	} else {
		existing, err := existingParts(store, inputPath)
		if err != nil {
			return nil, stageError(StageScan, inputPath, err)
		}
		if existing > 0 {
			log.WithField("parts", existing).Warn("Overwriting parts from a previous run")
		}
	}

	log.WithFields(logrus.Fields{
		logger.FieldStage:     StageScan,
		logger.FieldThreshold: bytesize.Format(thresholdBytes),
		logger.FieldBytes:     bytesize.Format(size),
	}).Info("Splitting document")

	splitter := document.NewSplitter(store, inputPath, thresholdBytes,
		document.WithRunID(runID),
		document.WithObserver(multiObserver{&logObserver{log: log}, s.observer}),
	)

	report, err := splitter.Split(ctx, io.NewSectionReader(file, 0, size), env)
	if err != nil {
		// 已写出的分片保留在输出目录中
		log.WithField(logger.FieldError, err).Warn("Split aborted")
		return nil, stageError(StageScan, inputPath, err)
	}

	log.WithFields(logrus.Fields{
		"parts":              len(report.Parts),
		logger.FieldRecords:  report.Records,
		logger.FieldBytes:    bytesize.Format(report.TotalBytes()),
		logger.FieldDuration: report.Duration().String(),
	}).Info("Split completed")

	return report, nil
}

// Inspection 输入文档的编码和外壳信息
type Inspection struct {
	Input    string
	Size     int64
	Encoding document.Encoding
	Envelope document.Envelope
}

// Inspect 只做编码检测和外壳提取，不写任何文件
func (s *SplitService) Inspect(ctx context.Context, inputPath string) (*Inspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, size, err := openInput(inputPath)
	if err != nil {
		return nil, stageError(StageDetect, inputPath, err)
	}
	defer file.Close()

	enc := document.DetectEncoding(file, size)
	env, err := document.ExtractEnvelope(file, size, enc, document.EnvelopeOptions{MaxBytes: s.envelopeLimit})
	if err != nil {
		return nil, stageError(StageExtract, inputPath, err)
	}

	return &Inspection{
		Input:    inputPath,
		Size:     size,
		Encoding: enc,
		Envelope: env,
	}, nil
}

// removeStaleParts 删除之前运行留下的分片
func (s *SplitService) removeStaleParts(store storage.Storage, inputPath string, log *logrus.Entry) error {
	prefix := strings.TrimSuffix(document.PartName(inputPath, 0), "0.tmx")
	files, err := store.List(prefix)
	if err != nil {
		return err
	}

	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".tmx") {
			continue
		}
		if err := store.Delete(f.Name); err != nil {
			return err
		}
		log.WithField(logger.FieldPath, f.Path).Debug("Removed stale part")
	}

	return nil
}

// existingParts 返回从0开始连续存在的旧分片数量
func existingParts(store storage.Storage, inputPath string) (int, error) {
	n := 0
	for {
		exists, err := store.Exists(document.PartName(inputPath, n))
		if err != nil || !exists {
			return n, err
		}
		n++
	}
}

// openInput 打开输入文件并返回大小
func openInput(path string) (*os.File, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInputIsDirectory, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}

	return file, info.Size(), nil
}

// logObserver 把分片进度写入日志
type logObserver struct {
	log *logrus.Entry
}

func (o *logObserver) PartStarted(index int, name string) {
	o.log.WithFields(logrus.Fields{
		logger.FieldPart: index,
		"name":           name,
	}).Debug("Started part")
}

func (o *logObserver) PartFinished(p document.Part) {
	o.log.WithFields(logrus.Fields{
		logger.FieldPart:    p.Index,
		logger.FieldPath:    p.Path,
		logger.FieldBytes:   bytesize.Format(p.Bytes),
		logger.FieldRecords: p.Records,
	}).Info("Wrote part")
}

// multiObserver 依次通知多个观察者
type multiObserver []document.Observer

func (m multiObserver) PartStarted(index int, name string) {
	for _, o := range m {
		o.PartStarted(index, name)
	}
}

func (m multiObserver) PartFinished(p document.Part) {
	for _, o := range m {
		o.PartFinished(p)
	}
}
