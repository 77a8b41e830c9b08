// Package evidence implements the content-addressed artifact store that
// execution evidence (tool stdout/stderr, generated files, test output) is
// written to. Task results reference artifacts by hash and path; bytes are
// never embedded in the run log.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/conductor/internal/contract"
)

// Kinds of captured artifacts.
const (
	KindStdout     = "stdout"
	KindStderr     = "stderr"
	KindArtifact   = "artifact"
	KindTestOutput = "test-output"
)

// Store writes artifacts under <root>/<graphID>/<taskID>/<kind>-<hash16>.
// Each writer owns its graph/task namespace, so concurrent Puts from
// different tasks never collide.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("evidence store root cannot be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create evidence root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Put stores an artifact and returns its reference.
// The blob name includes the blake3 hash, so identical content written
// twice resolves to the same path.
func (s *Store) Put(graphID, taskID, kind string, data []byte) (contract.EvidenceRef, error) {
	if graphID == "" || taskID == "" {
		return contract.EvidenceRef{}, fmt.Errorf("graph and task ids are required")
	}
	if kind == "" {
		kind = KindArtifact
	}

	sum := blake3.Sum256(data)
	hash := fmt.Sprintf("%x", sum)

	dir := filepath.Join(s.root, graphID, taskID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return contract.EvidenceRef{}, fmt.Errorf("create evidence directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s", kind, hash[:16]))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return contract.EvidenceRef{}, fmt.Errorf("write evidence blob: %w", err)
	}

	return contract.EvidenceRef{
		GraphID: graphID,
		TaskID:  taskID,
		Kind:    kind,
		Hash:    hash,
		Path:    path,
		Size:    int64(len(data)),
	}, nil
}

// Get reads back the artifact for a reference and verifies its content hash.
func (s *Store) Get(ref contract.EvidenceRef) ([]byte, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("read evidence blob: %w", err)
	}

	sum := blake3.Sum256(data)
	if got := fmt.Sprintf("%x", sum); got != ref.Hash {
		return nil, fmt.Errorf("evidence blob %s is corrupt: hash %s does not match reference %s",
			ref.Path, got[:16], ref.Hash[:16])
	}

	return data, nil
}

// List returns the references recorded on disk for one task.
// Reconstructed from the filesystem layout; useful for report commands.
func (s *Store) List(graphID, taskID string) ([]contract.EvidenceRef, error) {
	dir := filepath.Join(s.root, graphID, taskID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list evidence directory: %w", err)
	}

	var refs []contract.EvidenceRef
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read evidence blob: %w", err)
		}
		sum := blake3.Sum256(data)
		kind := entry.Name()
		if idx := len(kind) - 17; idx > 0 && kind[idx] == '-' {
			kind = kind[:idx]
		}
		refs = append(refs, contract.EvidenceRef{
			GraphID: graphID,
			TaskID:  taskID,
			Kind:    kind,
			Hash:    fmt.Sprintf("%x", sum),
			Path:    path,
			Size:    int64(len(data)),
		})
	}
	return refs, nil
}
