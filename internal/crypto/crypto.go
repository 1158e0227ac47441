// Пакет crypto — шифрование секретов ссылок и генерация ключей.
// AES-256-GCM: на каждый вызов свежий 96-битный nonce (IV),
// 128-битный тег аутентификации хранится отдельно от шифртекста.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize — длина мастер-ключа в байтах (AES-256).
	KeySize = 32
	// IVSize — длина nonce GCM в байтах.
	IVSize = 12
	// TagSize — длина тега аутентификации GCM в байтах.
	TagSize = 16
	// LinkIDSize — 128 бит случайности в идентификаторе ссылки.
	LinkIDSize = 16

	// CredentialPrefix — префикс сырых API-ключей.
	CredentialPrefix = "pl_"
	// credentialEntropy — байт случайности в API-ключе.
	credentialEntropy = 32
	// DisplayPrefixLen — сколько первых символов ключа показывать в списках.
	DisplayPrefixLen = 10
)

// ErrCrypto — неверный ключ или не прошла проверка тега (подмена/порча данных).
var ErrCrypto = errors.New("ошибка криптографии")

// Sealed — результат шифрования секрета.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
}

// Cipher — AEAD-шифр с мастер-ключом, создаётся один раз при старте.
// Безопасен для конкурентного использования.
type Cipher struct {
	gcm  cipher.AEAD
	rand io.Reader
}

// NewCipher создаёт шифр. Ключ должен быть ровно 256 бит.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: длина ключа %d бит, требуется %d", ErrCrypto, len(key)*8, KeySize*8)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: создание AES cipher: %v", ErrCrypto, err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: создание GCM: %v", ErrCrypto, err)
	}

	return &Cipher{gcm: gcm, rand: rand.Reader}, nil
}

// Encrypt шифрует plaintext со свежим случайным IV.
func (c *Cipher) Encrypt(plaintext []byte) (*Sealed, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return nil, fmt.Errorf("ошибка генерации IV: %w", err)
	}

	// Seal дописывает тег в конец шифртекста — разделяем
	out := c.gcm.Seal(nil, iv, plaintext, nil)
	split := len(out) - TagSize

	return &Sealed{
		Ciphertext: out[:split:split],
		IV:         iv,
		AuthTag:    out[split:],
	}, nil
}

// Decrypt расшифровывает и проверяет тег. Любое несовпадение — ErrCrypto.
func (c *Cipher) Decrypt(ciphertext, iv, authTag []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: длина IV %d, ожидается %d", ErrCrypto, len(iv), IVSize)
	}
	if len(authTag) != TagSize {
		return nil, fmt.Errorf("%w: длина тега %d, ожидается %d", ErrCrypto, len(authTag), TagSize)
	}

	buf := make([]byte, 0, len(ciphertext)+TagSize)
	buf = append(buf, ciphertext...)
	buf = append(buf, authTag...)

	plaintext, err := c.gcm.Open(nil, iv, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: проверка тега аутентификации не пройдена", ErrCrypto)
	}
	return plaintext, nil
}

// Encrypt — разовое шифрование с переданным ключом.
func Encrypt(plaintext, key []byte) (*Sealed, error) {
	c, err := NewCipher(key)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(plaintext)
}

// Decrypt — разовая расшифровка с переданным ключом.
func Decrypt(ciphertext, iv, authTag, key []byte) ([]byte, error) {
	c, err := NewCipher(key)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(ciphertext, iv, authTag)
}

// HashCredential — hex SHA-256, детерминированный поиск ключа по равенству хеша.
func HashCredential(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// GenerateCredential возвращает новый сырой API-ключ вида pl_<base64url>.
func GenerateCredential() (string, error) {
	b, err := randomBytes(credentialEntropy)
	if err != nil {
		return "", err
	}
	return CredentialPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// DisplayPrefix возвращает начало ключа для отображения.
func DisplayPrefix(credential string) string {
	if len(credential) <= DisplayPrefixLen {
		return credential
	}
	return credential[:DisplayPrefixLen]
}

// GenerateKey возвращает новый мастер-ключ в hex (64 символа).
func GenerateKey() (string, error) {
	b, err := randomBytes(KeySize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ParseKey декодирует мастер-ключ из hex.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: ключ должен быть hex-строкой", ErrCrypto)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: длина ключа %d бит, требуется %d", ErrCrypto, len(key)*8, KeySize*8)
	}
	return key, nil
}

// GenerateLinkID возвращает 128-битный случайный идентификатор ссылки (32 hex).
func GenerateLinkID() (string, error) {
	b, err := randomBytes(LinkIDSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IsLinkID проверяет формат идентификатора ссылки.
func IsLinkID(s string) bool {
	if len(s) != LinkIDSize*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("ошибка генерации случайных байт: %w", err)
	}
	return b, nil
}
