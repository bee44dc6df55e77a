package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor provides a generic interface for encryption/decryption
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// NewAESEncryptor creates a new AES-GCM encryptor
func NewAESEncryptor(key []byte) (Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption
	}

	return &aesEncryptor{
		gcm: gcm,
	}, nil
}

type aesEncryptor struct {
	gcm cipher.AEAD
}

func (a *aesEncryptor) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, a.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryption
	}

	return a.gcm.Seal(nonce, nonce, data, nil), nil
}

func (a *aesEncryptor) Decrypt(data []byte) ([]byte, error) {
	nonceSize := a.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := a.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

// FieldCodec encrypts individual column values with a key derived from the
// session passphrase. Ciphertexts are base64-encoded so they can live in TEXT
// columns. Decryption is authenticated: a wrong passphrase or tampered
// ciphertext yields ErrDecryption, never a wrong-but-valid plaintext.
type FieldCodec struct{}

func NewFieldCodec() *FieldCodec {
	return &FieldCodec{}
}

// Encode encrypts plaintext under a key derived from passphrase.
func (c *FieldCodec) Encode(plaintext, passphrase string) (string, error) {
	enc, err := NewAESEncryptor(deriveKey(passphrase))
	if err != nil {
		return "", err
	}

	ciphertext, err := enc.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decode reverses Encode. It fails closed with ErrDecryption.
func (c *FieldCodec) Decode(ciphertext, passphrase string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryption
	}

	enc, err := NewAESEncryptor(deriveKey(passphrase))
	if err != nil {
		return "", err
	}

	plaintext, err := enc.Decrypt(raw)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

// deriveKey turns the passphrase into an AES-256 key by one-way hash.
// The passphrase itself is never stored.
func deriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}
