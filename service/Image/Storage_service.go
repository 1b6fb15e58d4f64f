package Image

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// StorageServiceInterface 对象存储接口：按路径上传/读取/批量删除/前缀列举/公开URL
type StorageServiceInterface interface {
	Upload(path string, data []byte, contentType string) error
	ReadFile(path string) ([]byte, error)
	Remove(paths []string) error
	List(prefix string) ([]string, error)
	PublicURL(path string) string
}

// GlobalStorageService 全局StorageService实例
var GlobalStorageService StorageServiceInterface

// LocalStorageService 本地磁盘实现，公开URL由静态文件路由提供
type LocalStorageService struct {
	baseDir string
	baseURL string
}

func NewLocalStorageService(baseDir, baseURL string) (StorageServiceInterface, error) {
	if baseDir == "" {
		return nil, errors.New("存储目录不能为空")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	service := &LocalStorageService{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	GlobalStorageService = service
	return service, nil
}

func (s *LocalStorageService) fullPath(path string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(path))
}

// Upload 在指定路径写入文件（contentType 仅为接口兼容，磁盘实现不使用）
func (s *LocalStorageService) Upload(path string, data []byte, contentType string) error {
	if path == "" {
		return errors.New("存储路径不能为空")
	}

	full := s.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

// ReadFile 读取已存储文件的内容
func (s *LocalStorageService) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(s.fullPath(path))
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return data, nil
}

// Remove 批量删除，文件不存在不算错误
func (s *LocalStorageService) Remove(paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(s.fullPath(p)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("删除文件失败 (%s): %w", p, err)
		}
	}
	return nil
}

// List 列举指定前缀下的所有文件路径（相对存储根目录）
func (s *LocalStorageService) List(prefix string) ([]string, error) {
	root := s.fullPath(prefix)
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("列举文件失败: %w", err)
	}

	return paths, nil
}

// PublicURL 由存储路径派生公开访问URL
func (s *LocalStorageService) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}
