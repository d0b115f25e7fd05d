// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"
)

// setupStorageTest 创建临时目录下的文件存储
func setupStorageTest(t *testing.T) (*FileStorage, string) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "storage_test_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	storage, err := NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}
	return storage, tempDir
}

// TestSaveAndLoadFile 测试文件的保存与读取
func TestSaveAndLoadFile(t *testing.T) {
	storage, _ := setupStorageTest(t)

	content := []byte("hello storage")
	if err := storage.SaveFile("greeting.txt", content); err != nil {
		t.Fatalf("保存文件失败: %v", err)
	}

	loaded, err := storage.LoadFile("greeting.txt")
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if string(loaded) != "hello storage" {
		t.Errorf("读取内容应与保存一致，实际: %q", loaded)
	}
}

// TestSaveFileOverwrite 测试覆盖写入后缓存失效
func TestSaveFileOverwrite(t *testing.T) {
	storage, _ := setupStorageTest(t)

	if err := storage.SaveFile("data.txt", []byte("first")); err != nil {
		t.Fatalf("保存文件失败: %v", err)
	}
	// 先读一次，让内容进入缓存
	if _, err := storage.LoadFile("data.txt"); err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}

	if err := storage.SaveFile("data.txt", []byte("second")); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}

	loaded, err := storage.LoadFile("data.txt")
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if string(loaded) != "second" {
		t.Errorf("覆盖后读取应为新内容，实际: %q", loaded)
	}
}

// TestSaveAndLoadJSON 测试JSON的保存与读取
func TestSaveAndLoadJSON(t *testing.T) {
	storage, _ := setupStorageTest(t)

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := storage.SaveJSON("record.json", &record{Name: "luna", Count: 3}); err != nil {
		t.Fatalf("保存JSON失败: %v", err)
	}

	var loaded record
	if err := storage.LoadJSON("record.json", &loaded); err != nil {
		t.Fatalf("读取JSON失败: %v", err)
	}
	if loaded.Name != "luna" || loaded.Count != 3 {
		t.Errorf("JSON往返结果不正确: %+v", loaded)
	}
}

// TestLoadMissingFile 测试读取不存在的文件返回错误
func TestLoadMissingFile(t *testing.T) {
	storage, _ := setupStorageTest(t)

	if _, err := storage.LoadFile("does-not-exist.txt"); err == nil {
		t.Error("读取不存在的文件应返回错误")
	}
}

// TestExists 测试文件存在性检查
func TestExists(t *testing.T) {
	storage, _ := setupStorageTest(t)

	if storage.Exists("missing.txt") {
		t.Error("不存在的文件Exists应返回false")
	}

	if err := storage.SaveFile("present.txt", []byte("x")); err != nil {
		t.Fatalf("保存文件失败: %v", err)
	}
	if !storage.Exists("present.txt") {
		t.Error("已保存的文件Exists应返回true")
	}
}

// TestListFiles 测试按后缀列出文件
func TestListFiles(t *testing.T) {
	storage, _ := setupStorageTest(t)

	for _, name := range []string{"a.json", "b.json", "c.txt"} {
		if err := storage.SaveFile(name, []byte("{}")); err != nil {
			t.Fatalf("保存文件失败: %v", err)
		}
	}

	files, err := storage.ListFiles(".json")
	if err != nil {
		t.Fatalf("列出文件失败: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("应列出2个json文件，实际: %v", files)
	}
}

// TestAtomicWrite 测试写入后目录中没有残留的临时文件
func TestAtomicWrite(t *testing.T) {
	storage, tempDir := setupStorageTest(t)

	if err := storage.SaveFile("target.txt", []byte("content")); err != nil {
		t.Fatalf("保存文件失败: %v", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("写入完成后不应残留临时文件: %s", entry.Name())
		}
	}
}
