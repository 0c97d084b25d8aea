// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Document is a decoded MainState. It stays a map so keys the server does
// not know about survive a load/save round trip untouched.
type Document map[string]any

// CurrentSchemaVersion is the schemaVersion every stored document is
// migrated to before it is persisted
const CurrentSchemaVersion = 3

var (
	ErrUnsupportedSchema = errors.New("unsupported state schema version")
	ErrInvalidDocument   = errors.New("state document must be a JSON object")
)

var arrayFields = []string{"picks", "history", "tempWraps", "undoStack", "shiftBreaks", "operativeLog"}

var pickNumberFields = []string{"units", "pallets", "locations", "excl", "remaining"}

type migrationFunc func(Document)

// migrations[i] upgrades a document from schemaVersion i to i+1
var migrations = []migrationFunc{
	migrateArraysAndVersion,
	migratePickNumbers,
	migrateOperatorKeys,
}

// DefaultDocument is what a user with no saved state receives
func DefaultDocument() Document {
	doc := Document{
		"schemaVersion":   CurrentSchemaVersion,
		"version":         "",
		"savedAt":         nil,
		"current":         nil,
		"startTime":       "",
		"lastClose":       "",
		"pickingCutoff":   "",
		"proUnlocked":     false,
		"snakeUnlocked":   false,
		"operativeActive": nil,
		"liveRateUh":      nil,
	}
	for _, f := range arrayFields {
		doc[f] = []any{}
	}
	return doc
}

// Decode parses a stored or submitted payload. Only JSON objects are documents.
func Decode(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, ErrInvalidDocument
	}
	return doc, nil
}

// SchemaVersion reads schemaVersion. A missing field is version 0.
func SchemaVersion(doc Document) (int, error) {
	v, present := doc["schemaVersion"]
	if !present || v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok {
		if n, isInt := v.(int); isInt {
			f, ok = float64(n), true
		}
	}
	if !ok || f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedSchema, v)
	}
	return int(f), nil
}

// Migrate upgrades doc in place to CurrentSchemaVersion, one step at a time.
// A document from a newer server is rejected with ErrUnsupportedSchema.
func Migrate(doc Document) error {
	from, err := SchemaVersion(doc)
	if err != nil {
		return err
	}
	if from > CurrentSchemaVersion {
		return fmt.Errorf("%w: %d is newer than %d", ErrUnsupportedSchema, from, CurrentSchemaVersion)
	}
	for v := from; v < CurrentSchemaVersion; v++ {
		migrations[v](doc)
	}
	doc["schemaVersion"] = CurrentSchemaVersion
	return nil
}

// v0 -> v1
func migrateArraysAndVersion(doc Document) {
	for _, f := range arrayFields {
		if _, ok := doc[f].([]any); !ok {
			doc[f] = []any{}
		}
	}
	if n, ok := doc["version"].(float64); ok {
		doc["version"] = strconv.FormatFloat(n, 'f', -1, 64)
	}
}

// v1 -> v2
func migratePickNumbers(doc Document) {
	for _, p := range list(doc["picks"]) {
		pick, ok := object(p)
		if !ok {
			continue
		}
		for _, field := range pickNumberFields {
			v, present := pick[field]
			if !present || v == nil {
				continue
			}
			if n, ok := number(v); ok {
				pick[field] = n
			} else {
				delete(pick, field)
			}
		}
	}
}

// v2 -> v3
func migrateOperatorKeys(doc Document) {
	if current, ok := object(doc["current"]); ok {
		renameKey(current, "operatorId", "operator_id")
		renameKey(current, "operatorName", "operator_name")
	}
	renameKey(doc, "liveRate", "liveRateUh")
}

func renameKey(m map[string]any, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	if _, exists := m[to]; !exists {
		m[to] = v
	}
	delete(m, from)
}

// StampOperator overwrites whatever identity the client put in the
// document with the authenticated one
func StampOperator(doc Document, userID, displayName string) {
	doc["operator_id"] = userID
	doc["operator_name"] = displayName
	if current, ok := object(doc["current"]); ok {
		current["operator_id"] = userID
		current["operator_name"] = displayName
	}
}

// SavedAt returns the document's savedAt string, or "" when absent
func SavedAt(doc Document) string {
	return text(doc["savedAt"])
}

// Operator returns the identity recorded in the document, preferring the
// current order's stamp over the top-level one
func Operator(doc Document) (id, name string) {
	if current, ok := object(doc["current"]); ok {
		id = text(current["operator_id"])
		name = text(current["operator_name"])
	}
	if id == "" {
		id = text(doc["operator_id"])
	}
	if name == "" {
		name = text(doc["operator_name"])
	}
	return id, name
}
