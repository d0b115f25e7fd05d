// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStorage 提供档案文件的读写服务
// 文件级别锁保证并发安全，小型读缓存降低重复加载开销
type FileStorage struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // path -> *sync.RWMutex

	// 简单缓存
	cache       map[string]*cacheEntry
	cacheMutex  sync.RWMutex
	cacheExpiry time.Duration
}

// cacheEntry 缓存条目
type cacheEntry struct {
	data      []byte
	timestamp time.Time
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &FileStorage{
		BaseDir:     baseDir,
		cache:       make(map[string]*cacheEntry),
		cacheExpiry: 5 * time.Minute,
	}, nil
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// SaveFile 保存文件内容（原子性写入：先写临时文件再重命名）
func (fs *FileStorage) SaveFile(filename string, content []byte) error {
	fullPath := filepath.Join(fs.BaseDir, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("重命名文件失败: %w", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// LoadFile 读取文件内容，命中缓存时不访问磁盘
func (fs *FileStorage) LoadFile(filename string) ([]byte, error) {
	fullPath := filepath.Join(fs.BaseDir, filename)

	if data, ok := fs.getFromCache(fullPath); ok {
		return data, nil
	}

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	fs.saveToCache(fullPath, data)
	return data, nil
}

// SaveJSON 序列化并保存JSON文件
func (fs *FileStorage) SaveJSON(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化失败: %w", err)
	}
	return fs.SaveFile(filename, data)
}

// LoadJSON 读取并反序列化JSON文件
func (fs *FileStorage) LoadJSON(filename string, v interface{}) error {
	data, err := fs.LoadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析JSON失败 %s: %w", filename, err)
	}
	return nil
}

// Exists 检查文件是否存在
func (fs *FileStorage) Exists(filename string) bool {
	fullPath := filepath.Join(fs.BaseDir, filename)
	_, err := os.Stat(fullPath)
	return err == nil
}

// ListFiles 列出指定后缀的文件名
func (fs *FileStorage) ListFiles(suffix string) ([]string, error) {
	entries, err := os.ReadDir(fs.BaseDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if suffix == "" || strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// getFromCache 从缓存中读取
func (fs *FileStorage) getFromCache(key string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()

	entry, exists := fs.cache[key]
	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > fs.cacheExpiry {
		return nil, false
	}

	return entry.data, true
}

// saveToCache 写入缓存
func (fs *FileStorage) saveToCache(key string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[key] = &cacheEntry{
		data:      data,
		timestamp: time.Now(),
	}
}

// invalidateCache 移除指定键的缓存
func (fs *FileStorage) invalidateCache(key string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	delete(fs.cache, key)
}
