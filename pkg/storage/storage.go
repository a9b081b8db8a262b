package storage

import (
	"io"
)

// FileInfo 文件元数据结构
type FileInfo struct {
	Name string // 文件名（存储内唯一）
	Size int64  // 文件大小(字节)
	Path string // 完整路径(实现相关)
}

// Storage 输出文件存储接口
// 文件名是扁平的，不包含目录分隔符
type Storage interface {
	// Create 创建（或截断）文件并返回写入器
	Create(name string) (io.WriteCloser, FileInfo, error)

	// Exists 检查文件是否存在
	Exists(name string) (bool, error)

	// List 列出名称带有指定前缀的文件，按名称排序
	List(prefix string) ([]FileInfo, error)

	// Delete 删除文件
	Delete(name string) error
}
