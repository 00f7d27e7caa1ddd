// Package cryptox protects the long-lived membership API token at rest.
//
// Envelope formats, newest first, all base64 (standard alphabet):
//
//	IV(16) ‖ AES-256-CBC ciphertext ‖ HMAC-SHA256(IV ‖ ciphertext)
//	IV(16) ‖ AES-256-CBC ciphertext                  (written before the MAC was added)
//	plaintext                                        (written when encryption was unavailable)
//
// Decrypt tells them apart by length alone. The order of the checks is part of
// the format: reordering them makes previously stored tokens unreadable.
//
// A plaintext envelope of 48 bytes or more has the shape of a MAC envelope and
// fails verification, so Decrypt reports it as ErrTokenDecryptionFailed. Such
// a token must be stored again once encryption works.
package cryptox

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"golang.org/x/crypto/hkdf"
)

const (
	ivSize  = aes.BlockSize
	macSize = sha256.Size
	keySize = 32

	cipherKeyInfo = "fieldsync token cipher"
	macKeyInfo    = "fieldsync token mac"
)

var errPrimitiveUnavailable = errors.New("crypto primitive unavailable")

// Vault encrypts and decrypts API tokens. The cipher key and the MAC key are
// derived from two different secrets, so knowing one does not allow forging
// the other.
type Vault struct {
	encKey []byte
	macKey []byte
	rand   io.Reader
	log    logging.Logger
}

// NewVault derives the cipher and MAC keys with HKDF-SHA256.
func NewVault(cipherSecret, macSecret []byte) *Vault {
	return &Vault{
		encKey: deriveKey(cipherSecret, cipherKeyInfo),
		macKey: deriveKey(macSecret, macKeyInfo),
		rand:   rand.Reader,
		log:    logging.Nop(),
	}
}

// WithLogger sets the logger that reports the plaintext fallback.
func (v *Vault) WithLogger(l logging.Logger) *Vault {
	v.log = l
	return v
}

// deriveKey returns nil if HKDF cannot produce a key; Encrypt then falls back
// to the plaintext envelope.
func deriveKey(secret []byte, info string) []byte {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil
	}
	return key
}

// Encrypt returns the envelope for token. It never fails: when a primitive is
// unavailable (no randomness, no key) the token is only base64-encoded, so the
// result is wire-safe but not confidential. An empty token yields "".
func (v *Vault) Encrypt(token string) string {
	if token == "" {
		return ""
	}
	sealed, err := v.seal([]byte(token))
	if err != nil {
		if v.log != nil {
			v.log.Warn(context.Background(), "api token stored without encryption", "error", err, "unreadable", len(token) >= ivSize+macSize)
		}
		return base64.StdEncoding.EncodeToString([]byte(token))
	}
	return base64.StdEncoding.EncodeToString(sealed)
}

func (v *Vault) seal(plaintext []byte) ([]byte, error) {
	if len(v.encKey) == 0 || len(v.macKey) == 0 || v.rand == nil {
		return nil, errPrimitiveUnavailable
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(v.rand, iv); err != nil {
		return nil, fmt.Errorf("iv: %w", err)
	}

	ciphertext, err := encryptCBC(v.encKey, iv, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, ivSize+len(ciphertext)+macSize)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return append(out, v.sum(out)...), nil
}

// Decrypt reverses Encrypt for every envelope format listed in the package
// comment. A MAC-bearing envelope that fails verification returns
// common.ErrTokenDecryptionFailed and an empty token, never partial plaintext.
func (v *Vault) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		// stored before encoding was introduced
		return envelope, nil
	}

	if len(raw) < ivSize {
		return string(raw), nil
	}

	if len(raw) >= ivSize+macSize {
		body, tag := raw[:len(raw)-macSize], raw[len(raw)-macSize:]
		if !hmac.Equal(tag, v.sum(body)) {
			return "", common.ErrTokenDecryptionFailed
		}
		plaintext, err := decryptCBC(v.encKey, body[:ivSize], body[ivSize:])
		if err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrTokenDecryptionFailed, err)
		}
		return string(plaintext), nil
	}

	plaintext, err := decryptCBC(v.encKey, raw[:ivSize], raw[ivSize:])
	if err != nil {
		// not ciphertext after all: a plaintext envelope of this length
		return string(raw), nil
	}
	return string(plaintext), nil
}

func (v *Vault) sum(data []byte) []byte {
	m := hmac.New(sha256.New, v.macKey)
	m.Write(data)
	return m.Sum(nil)
}

func encryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pad(plaintext)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func decryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a whole number of blocks")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out)
}

// pad applies PKCS#7.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
