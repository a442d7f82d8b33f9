// Package blobstore stores uploaded clinic files (plan attachments, lab
// reports) and hands back a URL and a storage id. Files are never deleted by
// the application.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
)

// DefaultMaxFileSize bounds a single upload (20 MB).
const DefaultMaxFileSize = 20 * 1024 * 1024

// File is an upload on its way into a Store.
type File struct {
	Name    string
	Content io.Reader
}

// Object describes a stored file.
type Object struct {
	StorageID   string    `json:"storage_id"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store persists file content under a folder and returns where it landed.
type Store interface {
	Put(ctx context.Context, f File, folder string) (*Object, error)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// objectKey builds "<folder>/<uuid>-<sanitized name>".
func objectKey(folder, name string) string {
	base := unsafeChars.ReplaceAllString(path.Base(name), "_")
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+"-"+base)
}

// readLimited drains r, enforcing max, and fills size, hash and content type.
func readLimited(f File, max int64) ([]byte, *Object, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, nil, ErrMissingFileName
	}
	data, err := io.ReadAll(io.LimitReader(f.Content, max+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return nil, nil, ErrFileTooLarge
	}
	return data, &Object{
		Name:        f.Name,
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", sha256.Sum256(data)),
		StoredAt:    time.Now().UTC(),
	}, nil
}

// MemoryStore keeps files in process memory. Development and tests only.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
	maxSize int64
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://files"
	}
	return &MemoryStore{
		objects: make(map[string][]byte),
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: DefaultMaxFileSize,
	}
}

func (s *MemoryStore) Put(_ context.Context, f File, folder string) (*Object, error) {
	data, obj, err := readLimited(f, s.maxSize)
	if err != nil {
		return nil, err
	}
	obj.StorageID = objectKey(folder, f.Name)
	obj.URL = s.baseURL + "/" + obj.StorageID

	s.mu.Lock()
	s.objects[obj.StorageID] = data
	s.mu.Unlock()
	return obj, nil
}

// Get returns the stored bytes for storageID.
func (s *MemoryStore) Get(_ context.Context, storageID string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[storageID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len reports how many objects are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
