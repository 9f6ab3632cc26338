package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Ошибки шифрования
var (
	ErrInvalidKeyLength   = errors.New("encryption key must be exactly 32 bytes for AES-256")
	ErrEmptyPassphrase    = errors.New("encryption passphrase cannot be empty")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrInvalidIV          = errors.New("invalid initialization vector")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")
)

// Параметры scrypt для деривации ключа из passphrase.
// N=32768 - компромисс между стойкостью и временем старта процесса.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	deriveKeyLen = 32 // AES-256
)

// deriveSalt - фиксированная соль деривации ключа.
// Passphrase процесс-wide и единственный, поэтому случайная соль
// не требуется: ключ должен быть детерминированным между рестартами.
var deriveSalt = []byte("tradejournal.credential.vault.v1")

// DeriveKey выводит 32-байтный ключ AES-256 из конфигурационного passphrase
// с использованием scrypt. Passphrase приходит из переменных окружения
// и никогда не хранится в БД.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return scrypt.Key([]byte(passphrase), deriveSalt, scryptN, scryptR, scryptP, deriveKeyLen)
}

// EncryptField шифрует значение поля с использованием AES-256-GCM.
//
// Возвращает пару (ciphertext, iv) в base64 - IV хранится отдельной
// колонкой согласно контракту encryption-at-rest, а не префиксом
// внутри ciphertext.
func EncryptField(plaintext string, key []byte) (ciphertextB64, ivB64 string, err error) {
	if len(key) != deriveKeyLen {
		return "", "", ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	// Генерируем случайный IV (nonce) для каждого поля
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", err
	}

	// GCM добавляет аутентификационный тег автоматически
	ciphertext := gcm.Seal(nil, iv, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), base64.StdEncoding.EncodeToString(iv), nil
}

// DecryptField расшифровывает пару (ciphertext, iv), созданную EncryptField.
//
// Возвращает ErrDecryptionFailed при повреждённом ciphertext или неверном
// ключе - для вызывающего это фатальная ошибка запроса без retry:
// испорченные учётные данные сами не починятся.
func DecryptField(ciphertextB64, ivB64 string, key []byte) (string, error) {
	if len(key) != deriveKeyLen {
		return "", ErrInvalidKeyLength
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return "", ErrInvalidIV
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(iv) != gcm.NonceSize() {
		return "", ErrInvalidIV
	}
	if len(ciphertext) < gcm.Overhead() {
		return "", ErrCiphertextTooShort
	}

	// Расшифровываем и проверяем аутентификацию
	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey генерирует криптографически стойкий случайный ключ (32 байта)
func GenerateKey() ([]byte, error) {
	key := make([]byte, deriveKeyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ValidateKey проверяет, что ключ имеет правильную длину
func ValidateKey(key []byte) error {
	if len(key) != deriveKeyLen {
		return ErrInvalidKeyLength
	}
	return nil
}
