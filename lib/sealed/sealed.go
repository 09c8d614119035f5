// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts secret payloads at rest with age.
//
// The shop owns one X25519 identity. Provisioning seals each payload to
// the identity's public key; the payment path opens it with the private
// key at the moment of disclosure. Ciphertext is base64 text so it sits
// in an ordinary SQLite TEXT column.
//
// The identity file uses the age-keygen format: "#" comment lines and
// one AGE-SECRET-KEY-1... line. The private key only ever lives in a
// [secret.Buffer].
package sealed

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/bakhtin/ctf-tshirt/lib/secret"
)

// Keypair is the shop's age identity. Close releases the private key.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... string in protected memory.
	PrivateKey *secret.Buffer

	// PublicKey is the age1... recipient string. Safe to log.
	PublicKey string
}

// GenerateKeypair creates a fresh X25519 identity.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating identity: %w", err)
	}
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// LoadKeypair reads an age-keygen style identity file.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading identity: %w", err)
	}
	defer secret.Zero(data)

	var keyLine []byte
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if keyLine != nil {
			return nil, fmt.Errorf("sealed: %s holds more than one identity", path)
		}
		keyLine = line
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sealed: reading identity: %w", err)
	}
	if keyLine == nil {
		return nil, fmt.Errorf("sealed: %s holds no identity", path)
	}

	identity, err := age.ParseX25519Identity(string(keyLine))
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity in %s: %w", path, err)
	}
	privateKey, err := secret.NewFromBytes(keyLine)
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// WriteIdentityFile writes the keypair in age-keygen format. The file
// is created with mode 0600 and must not already exist.
func WriteIdentityFile(path string, keypair *Keypair, now time.Time) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("sealed: creating identity file: %w", err)
	}
	header := fmt.Sprintf("# created: %s\n# public key: %s\n", now.UTC().Format(time.RFC3339), keypair.PublicKey)
	if _, err := io.WriteString(file, header); err != nil {
		file.Close()
		return fmt.Errorf("sealed: writing identity file: %w", err)
	}
	if _, err := file.Write(keypair.PrivateKey.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("sealed: writing identity file: %w", err)
	}
	if _, err := io.WriteString(file, "\n"); err != nil {
		file.Close()
		return fmt.Errorf("sealed: writing identity file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("sealed: closing identity file: %w", err)
	}
	return nil
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// Seal encrypts plaintext to the keypair's public key and returns
// base64 ciphertext.
func (k *Keypair) Seal(plaintext []byte) (string, error) {
	return Encrypt(plaintext, k.PublicKey)
}

// Open decrypts ciphertext produced by Seal into a protected buffer.
// The caller closes the buffer.
func (k *Keypair) Open(ciphertext string) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(k.PrivateKey.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing private key: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("sealed: decoding ciphertext: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed: ciphertext holds an empty payload")
	}
	return secret.NewFromBytes(plaintext)
}

// Encrypt seals plaintext to a single age1... recipient.
func Encrypt(plaintext []byte, recipientKey string) (string, error) {
	recipient, err := age.ParseX25519Recipient(strings.TrimSpace(recipientKey))
	if err != nil {
		return "", fmt.Errorf("sealed: parsing recipient %q: %w", recipientKey, err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return "", fmt.Errorf("sealed: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealed: finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}
