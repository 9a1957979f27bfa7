package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrUnsupportedSchema = errors.New("unsupported cart schema version")
)

// CartRepository persists the single cart record of one owner.
// The owner is bound when the repository is constructed.
type CartRepository interface {
	// Load returns ErrCartNotFound when nothing was saved yet.
	Load(ctx context.Context) (*domain.CartRecord, error)
	Save(ctx context.Context, record *domain.CartRecord) error
}

// EncodeRecord stamps the current schema version and marshals the record.
func EncodeRecord(record *domain.CartRecord) ([]byte, error) {
	r := *record
	r.SchemaVersion = domain.CurrentSchemaVersion
	if r.Lines == nil {
		r.Lines = []domain.CartLine{}
	}
	data, err := json.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("marshal cart record failed: %w", err)
	}
	return data, nil
}

// DecodeRecord unmarshals a stored record, migrating older layouts to the current one.
func DecodeRecord(data []byte) (*domain.CartRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal cart record failed: %w", err)
	}

	version, versioned := schemaVersion(fields)
	if !versioned {
		return migrateV0(fields)
	}
	if version > domain.CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}

	var record domain.CartRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal cart record failed: %w", err)
	}
	record.SchemaVersion = domain.CurrentSchemaVersion
	return &record, nil
}

func schemaVersion(fields map[string]json.RawMessage) (int, bool) {
	raw, ok := fields["schema_version"]
	if !ok {
		return 0, false
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// migrateV0 upgrades the unversioned layout: a bare object of key -> line.
// It carried no insertion order, so lines are ordered by key.
func migrateV0(fields map[string]json.RawMessage) (*domain.CartRecord, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	record := &domain.CartRecord{
		SchemaVersion: domain.CurrentSchemaVersion,
		Lines:         make([]domain.CartLine, 0, len(keys)),
	}
	for _, k := range keys {
		var line domain.CartLine
		if err := json.Unmarshal(fields[k], &line); err != nil {
			return nil, fmt.Errorf("migrate v0 line %q failed: %w", k, err)
		}
		if line.Key == "" {
			line.Key = k
		}
		record.Lines = append(record.Lines, line)
	}
	return record, nil
}
