// internal/utils/crypto_test.go
package utils

import (
	"strings"
	"testing"
)

// TestEncryptDecryptRoundTrip 测试加解密往返
func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := `{"version":"2.0","type":"user"}`
	key := "profile-encryption-key"

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("密文不应等于明文")
	}

	decrypted, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("解密失败: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("解密结果应等于原文，实际: %q", decrypted)
	}
}

// TestDecryptWrongKey 测试错误密钥解密失败
func TestDecryptWrongKey(t *testing.T) {
	ciphertext, err := Encrypt("secret data", "correct-key")
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}

	if _, err := Decrypt(ciphertext, "wrong-key"); err == nil {
		t.Error("错误密钥解密应失败")
	}
}

// TestEncryptNondeterministic 测试相同输入每次产生不同密文（随机nonce）
func TestEncryptNondeterministic(t *testing.T) {
	first, err := Encrypt("same input", "key")
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}
	second, err := Encrypt("same input", "key")
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}

	if first == second {
		t.Error("相同输入的两次加密不应产生相同密文")
	}
}

// TestEncryptVariousKeyLengths 测试任意长度密钥均可派生
func TestEncryptVariousKeyLengths(t *testing.T) {
	keys := []string{"a", "short", strings.Repeat("long", 20)}

	for _, key := range keys {
		ciphertext, err := Encrypt("payload", key)
		if err != nil {
			t.Fatalf("密钥长度%d加密失败: %v", len(key), err)
		}
		decrypted, err := Decrypt(ciphertext, key)
		if err != nil {
			t.Fatalf("密钥长度%d解密失败: %v", len(key), err)
		}
		if decrypted != "payload" {
			t.Errorf("密钥长度%d往返结果不正确: %q", len(key), decrypted)
		}
	}
}

// TestDecryptGarbage 测试非法密文解密失败而不崩溃
func TestDecryptGarbage(t *testing.T) {
	if _, err := Decrypt("not-a-valid-ciphertext", "key"); err == nil {
		t.Error("非法密文解密应失败")
	}
}
