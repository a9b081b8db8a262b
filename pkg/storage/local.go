package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地目录存储实现
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 输出目录
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	// 确保路径是绝对路径
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// 确保目录存在
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// Path 返回文件的完整路径
func (s *LocalStorage) Path(name string) string {
	return filepath.Join(s.basePath, name)
}

// Create 创建文件，已存在的文件会被截断
func (s *LocalStorage) Create(name string) (io.WriteCloser, FileInfo, error) {
	if err := validateName(name); err != nil {
		return nil, FileInfo{}, err
	}

	path := s.Path(name)
	file, err := os.Create(path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}

	return file, FileInfo{Name: name, Path: path}, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	_, err := os.Stat(s.Path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat file: %w", err)
}

// List 列出目录下以prefix开头的普通文件
func (s *LocalStorage) List(prefix string) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		files = append(files, FileInfo{
			Name: entry.Name(),
			Size: info.Size(),
			Path: s.Path(entry.Name()),
		})
	}

	return files, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := os.Remove(s.Path(name)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// validateName 拒绝空名称和带路径的名称
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
