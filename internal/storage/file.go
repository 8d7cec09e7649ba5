// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/tauros/internal/util"
)

// FileSlots stores each slot as <dir>/<name>.json.
// SECURITY: files are written 0600 and the directory 0700, since the API key
// slot holds a credential.
type FileSlots struct {
	dir string
	mu  sync.Mutex
}

// NewFileSlots creates dir if needed and returns a store rooted there.
func NewFileSlots(dir string) (*FileSlots, error) {
	if dir == "" {
		return nil, errors.New("file slots: empty directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	return &FileSlots{dir: dir}, nil
}

// Dir returns the root directory.
func (f *FileSlots) Dir() string {
	return f.dir
}

func (f *FileSlots) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

// Get implements Slots.
func (f *FileSlots) Get(_ context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", name, err)
	}
	return data, nil
}

// Put implements Slots.
// RELIABILITY: atomic rename, so a crash leaves the previous value intact.
func (f *FileSlots) Put(_ context.Context, name string, value []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := util.AtomicWriteFileWithDir(f.path(name), value, 0600, 0700); err != nil {
		return fmt.Errorf("write slot %s: %w", name, err)
	}
	return nil
}

// Delete implements Slots. Deleting an absent slot is not an error.
func (f *FileSlots) Delete(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete slot %s: %w", name, err)
	}
	return nil
}

// Close implements Slots.
func (f *FileSlots) Close() error { return nil }
