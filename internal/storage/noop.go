package storage

import "github.com/dennisdiepolder/monti/wrapupbridge/internal/types"

// Store defines the storage interface
type Store interface {
	SaveWrapupRecord(record types.WrapupRecord) error
	GetWrapupRecords(dateKey string) ([]types.WrapupRecord, error)
	GetInteractionWrapups(dateKey string, id types.InteractionID) ([]types.WrapupRecord, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveWrapupRecord(_ types.WrapupRecord) error { return nil }
func (s *NoopStore) GetWrapupRecords(_ string) ([]types.WrapupRecord, error) { return nil, nil }
func (s *NoopStore) TruncateAll() error { return nil }
func (s *NoopStore) GetInteractionWrapups(_ string, _ types.InteractionID) ([]types.WrapupRecord, error) {
	return nil, nil
}
