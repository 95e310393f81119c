package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"claimaudit-backend/models"
)

// LocalStorage implements DocumentStore on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Type returns the storage backend type
func (s *LocalStorage) Type() StorageType {
	return StorageTypeLocal
}

// Save writes the policy document as JSON, replacing any previous version
func (s *LocalStorage) Save(ctx context.Context, doc *models.PolicyDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("policy document must have an id")
	}

	fullPath := filepath.Join(s.basePath, documentKey(doc.ID))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode policy document: %w", err)
	}

	// Write via a temp file so a crash never leaves a half-written document
	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write policy document: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize policy document: %w", err)
	}

	return nil
}

// Get reads a policy document from local storage
func (s *LocalStorage) Get(ctx context.Context, policyID string) (*models.PolicyDocument, error) {
	fullPath := filepath.Join(s.basePath, documentKey(policyID))

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to read policy document: %w", err)
	}

	var doc models.PolicyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy document: %w", err)
	}

	return &doc, nil
}

// Delete removes a policy document from local storage
func (s *LocalStorage) Delete(ctx context.Context, policyID string) error {
	fullPath := filepath.Join(s.basePath, documentKey(policyID))

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete policy document: %w", err)
	}

	return nil
}
