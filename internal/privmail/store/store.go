// Package store persists ShareRecords, search indexes, and query shares to
// the YAML-equivalent flat files spec.md §6 describes, one file per record,
// named with a timestamp plus a random suffix so concurrent writers never
// collide.
package store

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/encryptogroup/PrivMail/internal/privmail/receive"
)

// UniqueFilename returns a filename of the form YYMMDD-HHMMSS_<6B base64url
// suffix>.yaml, timestamped at t, guaranteeing no collision within a
// directory via the random suffix even when two records are written in the
// same second.
func UniqueFilename(t time.Time) (string, error) {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("store: UniqueFilename: %w", err)
	}
	return fmt.Sprintf("%s_%s.yaml", t.Format("060102-150405"), base64.RawURLEncoding.EncodeToString(suffix)), nil
}

// SaveShareRecord writes rec to dir under a fresh unique filename and
// returns the path written.
func SaveShareRecord(dir string, rec receive.ShareRecord, t time.Time) (string, error) {
	name, err := UniqueFilename(t)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)

	data, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("store: SaveShareRecord: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("store: SaveShareRecord: write: %w", err)
	}
	return path, nil
}

// LoadShareRecords reads every *.yaml file directly under dir (no
// recursion) and parses it as a ShareRecord. A file that fails to parse is
// logged via warn and skipped, not fatal -- a corrupt record must not take
// down reconstruction of the rest of the directory.
func LoadShareRecords(dir string, warn func(format string, v ...interface{})) ([]receive.ShareRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("store: LoadShareRecords: %w", err)
	}

	var records []receive.ShareRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			if warn != nil {
				warn("store: LoadShareRecords: reading %s: %v", path, err)
			}
			continue
		}
		var rec receive.ShareRecord
		if err := yaml.Unmarshal(data, &rec); err != nil {
			if warn != nil {
				warn("store: LoadShareRecords: parsing %s: %v", path, err)
			}
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
