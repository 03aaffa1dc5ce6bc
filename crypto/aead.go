package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/RobLovegrove/umdf-go/errs"
)

const (
	keyLen = 32
	ivLen  = 12 // GCM standard nonce size
	tagLen = 16
)

// DeriveKey computes the per-module AES-256 key: Argon2id(password,
// baseSalt‖moduleSalt, mem, time, par) (spec §3).
func DeriveKey(password string, params KDFParams, moduleSalt []byte) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	salt := append(append([]byte{}, params.BaseSalt[:]...), moduleSalt...)
	return argon2.IDKey([]byte(password), salt, params.TimeCost, uint32(params.MemoryCost), uint8(params.Parallelism), keyLen), nil
}

// NewModuleSalt generates a fresh random per-module salt (at least 16
// bytes per spec §3's `moduleSalt:bytes[≥16]`).
func NewModuleSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generate module salt: %w", err)
	}
	return salt, nil
}

// Sealed is the result of Encrypt: the ciphertext (which embeds the GCM
// authentication tag at its tail per Go's cipher.AEAD.Seal convention) is
// split back out into Ciphertext/AuthTag so callers can store them in
// separate header TLVs (spec §3: `iv:bytes[12], authTag:bytes[16]`).
type Sealed struct {
	IV         []byte
	Ciphertext []byte
	AuthTag    []byte
}

// Encrypt seals plaintext under key with a freshly generated IV. aad is
// additional authenticated data; the container format passes none (spec
// §7: "aad=∅"), but the parameter is kept for callers that want it.
func Encrypt(key, plaintext, aad []byte) (Sealed, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Sealed{}, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return Sealed{}, fmt.Errorf("crypto: new GCM mode: %w", err)
	}

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("crypto: generate IV: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, aad)
	ciphertext := sealed[:len(sealed)-tagLen]
	authTag := sealed[len(sealed)-tagLen:]

	return Sealed{IV: iv, Ciphertext: ciphertext, AuthTag: authTag}, nil
}

// Decrypt reverses Encrypt. It returns errs.ErrDecryptFailed if the tag
// does not authenticate (wrong password, wrong salts, or corrupted bytes).
func Decrypt(key, iv, ciphertext, authTag, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM mode: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), authTag...)
	plaintext, err := gcm.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecryptFailed, err)
	}
	return plaintext, nil
}
