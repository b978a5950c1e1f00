// Package repository stores contract module bytes on disk, keyed by wasm hash.
package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/govm-net/counter/types"
)

const (
	moduleFile   = "module.bin"
	metadataFile = "metadata.json"
)

var (
	ErrCodeNotFound   = errors.New("contract code not found")
	ErrDigestMismatch = errors.New("contract code digest mismatch")
)

// Manager is the code store.
type Manager struct {
	rootDir string
	logger  *zap.Logger
}

// ContractCode is a stored module.
type ContractCode struct {
	Hash       types.ContractWasmHash
	Code       []byte
	Digest     types.Hash // blake2b of Code
	UpdateTime time.Time
}

// ContractMetadata is written next to the module bytes.
type ContractMetadata struct {
	Digest     types.Hash `json:"digest"`
	Size       int        `json:"size"`
	UpdateTime time.Time  `json:"update_time"`
}

// NewManager creates a manager rooted at rootDir.
func NewManager(rootDir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		logger.Error("failed to create root directory", zap.String("dir", rootDir), zap.Error(err))
		return nil, errors.Wrap(err, "failed to create root directory")
	}
	return &Manager{rootDir: rootDir, logger: logger}, nil
}

// RegisterCode stores code under hash. Registering the same code twice is a no-op;
// registering different code under a used hash fails.
func (m *Manager) RegisterCode(hash types.ContractWasmHash, code []byte) error {
	digest := types.Blake2b(code)
	dir := m.getContractDir(hash)

	if existing, err := m.loadMetadata(hash); err == nil {
		if existing.Digest != digest {
			return errors.Wrapf(ErrDigestMismatch, "wasm %s already registered", hash)
		}
		return nil
	} else if !errors.Is(err, ErrCodeNotFound) {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create contract directory")
	}
	if err := m.saveContractFiles(dir, code, digest); err != nil {
		os.RemoveAll(dir)
		return errors.Wrap(err, "failed to save contract files")
	}
	m.logger.Debug("registered contract code", zap.Stringer("wasm", hash), zap.Int("size", len(code)))
	return nil
}

// Has reports whether code is stored under hash.
func (m *Manager) Has(hash types.ContractWasmHash) bool {
	_, err := m.loadMetadata(hash)
	return err == nil
}

// GetCode loads the code stored under hash and checks it against its digest.
func (m *Manager) GetCode(hash types.ContractWasmHash) (*ContractCode, error) {
	metadata, err := m.loadMetadata(hash)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(filepath.Join(m.getContractDir(hash), moduleFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read module")
	}
	if types.Blake2b(code) != metadata.Digest {
		return nil, errors.Wrapf(ErrDigestMismatch, "wasm %s", hash)
	}
	return &ContractCode{
		Hash:       hash,
		Code:       code,
		Digest:     metadata.Digest,
		UpdateTime: metadata.UpdateTime,
	}, nil
}

func (m *Manager) getContractDir(hash types.ContractWasmHash) string {
	return filepath.Join(m.rootDir, hash.String())
}

func (m *Manager) saveContractFiles(dir string, code []byte, digest types.Hash) error {
	if err := os.WriteFile(filepath.Join(dir, moduleFile), code, 0644); err != nil {
		return errors.Wrap(err, "failed to save module")
	}
	metadata := ContractMetadata{
		Digest:     digest,
		Size:       len(code),
		UpdateTime: time.Now(),
	}
	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal metadata")
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metadataBytes, 0644); err != nil {
		return errors.Wrap(err, "failed to save metadata")
	}
	return nil
}

func (m *Manager) loadMetadata(hash types.ContractWasmHash) (*ContractMetadata, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(m.getContractDir(hash), metadataFile))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrCodeNotFound, "wasm %s", hash)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read metadata")
	}
	var metadata ContractMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metadata")
	}
	return &metadata, nil
}
