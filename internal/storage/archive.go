// Package storage archives raw job-service payloads to a blob store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

// ContentTypeJSON is the content type of archived payloads.
const ContentTypeJSON = "application/json"

// BlobStore writes a single object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Archiver stores raw dataset payloads under <prefix>/<userId>/<runId>.json.
type Archiver struct {
	store  BlobStore
	prefix string
}

// NewArchiver builds an Archiver writing under prefix.
func NewArchiver(store BlobStore, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// ObjectPath returns the object key for a run. Path separators and other
// unsafe characters in the ids are replaced with "_".
func ObjectPath(prefix, userID, runID string) string {
	user := sanitizeSegment(userID, "anonymous")
	run := sanitizeSegment(runID, "run")
	return path.Join(strings.Trim(prefix, "/"), user, run+".json")
}

func sanitizeSegment(s, fallback string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return fallback
	}
	return s
}

// Archive writes payload for the given user and run.
func (a *Archiver) Archive(ctx context.Context, userID, runID string, payload []byte) (string, error) {
	if a == nil || a.store == nil {
		return "", fmt.Errorf("archive store is not configured")
	}
	uri, err := a.store.PutObject(ctx, ObjectPath(a.prefix, userID, runID), ContentTypeJSON, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("archive run %s: %w", runID, err)
	}
	return uri, nil
}
