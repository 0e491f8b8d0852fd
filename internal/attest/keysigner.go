package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
)

// KeySigner signs attestation messages with a persistent Ed25519 key.
type KeySigner struct {
	mu      sync.RWMutex
	keyPath string
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

// NewKeySigner creates a signer persisting its key at keyPath.
// An empty keyPath keeps the key in memory only.
func NewKeySigner(keyPath string) *KeySigner {
	return &KeySigner{keyPath: keyPath}
}

// LoadOrGenerate loads an existing key from disk or generates a new one.
func (k *KeySigner) LoadOrGenerate() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.keyPath != "" {
		if priv, err := k.loadKey(); err == nil {
			k.priv = priv
			k.pub = priv.Public().(ed25519.PublicKey)
			return nil
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}
	k.priv = priv
	k.pub = pub

	if k.keyPath != "" {
		if err := k.saveKey(); err != nil {
			return fmt.Errorf("failed to save signing key: %w", err)
		}
	}

	return nil
}

func (k *KeySigner) loadKey() (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(k.keyPath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	edPriv, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("not an Ed25519 private key")
	}

	return edPriv, nil
}

func (k *KeySigner) saveKey() error {
	pkcs8, err := x509.MarshalPKCS8PrivateKey(k.priv)
	if err != nil {
		return err
	}

	block := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: pkcs8,
	}

	return os.WriteFile(k.keyPath, pem.EncodeToMemory(block), 0600)
}

// Sign signs the message and returns the hex-encoded signature.
func (k *KeySigner) Sign(message []byte) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.priv == nil {
		return "", errors.New("no signing key available")
	}

	return hex.EncodeToString(ed25519.Sign(k.priv, message)), nil
}

// Address returns the hex-encoded public key identifying the signer.
func (k *KeySigner) Address() string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.pub == nil {
		return ""
	}
	return hex.EncodeToString(k.pub)
}

// PublicKey returns the raw public key for verification.
func (k *KeySigner) PublicKey() ed25519.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.pub
}

// Ensure KeySigner implements Signer.
var _ Signer = (*KeySigner)(nil)
