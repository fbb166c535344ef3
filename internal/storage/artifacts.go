package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

const sessionsPrefix = "sessions"

// Files stored next to the JSON documents of a session.
const (
	ProcessedWorkbook = "processed_table.xlsx"
	ReportPDF         = "report.pdf"
)

// ArtifactStore addresses run documents by session key and document name.
// Every session lives under its own prefix so concurrent runs never share keys.
type ArtifactStore struct {
	store ObjectStorage
}

func NewArtifactStore(store ObjectStorage) *ArtifactStore {
	return &ArtifactStore{store: store}
}

func (a *ArtifactStore) Backend() ObjectStorage {
	return a.store
}

func SessionPrefix(session string) string {
	return path.Join(sessionsPrefix, session) + "/"
}

func DocumentKey(session string, name inventory.DocumentName) string {
	return path.Join(sessionsPrefix, session, string(name)+".json")
}

func FileKey(session, filename string) string {
	return path.Join(sessionsPrefix, session, filename)
}

// SaveAll writes every document of a run in parallel.
func (a *ArtifactStore) SaveAll(ctx context.Context, session string, docs inventory.Documents) error {
	if err := validSession(session); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for name, data := range docs {
		g.Go(func() error {
			key := DocumentKey(session, name)
			if err := a.store.PutObject(ctx, key, data); err != nil {
				return fmt.Errorf("save %s: %w", name, err)
			}
			log.Debug().Str("session_key", session).Str("document", string(name)).Int("bytes", len(data)).Msg("artifact stored")
			return nil
		})
	}
	return g.Wait()
}

// Load returns one document. A missing document yields ErrNotFound.
func (a *ArtifactStore) Load(ctx context.Context, session string, name inventory.DocumentName) ([]byte, error) {
	if err := validSession(session); err != nil {
		return nil, err
	}
	return a.store.GetObject(ctx, DocumentKey(session, name))
}

// LoadAll fetches every document of a session in parallel.
func (a *ArtifactStore) LoadAll(ctx context.Context, session string) (inventory.Documents, error) {
	if err := validSession(session); err != nil {
		return nil, err
	}
	results := make([][]byte, len(inventory.DocumentNames))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range inventory.DocumentNames {
		g.Go(func() error {
			data, err := a.store.GetObject(ctx, DocumentKey(session, name))
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make(inventory.Documents, len(results))
	for i, name := range inventory.DocumentNames {
		docs[name] = results[i]
	}
	return docs, nil
}

func (a *ArtifactStore) LoadBundle(ctx context.Context, session string) (*inventory.Bundle, error) {
	docs, err := a.LoadAll(ctx, session)
	if err != nil {
		return nil, err
	}
	return inventory.DecodeBundle(docs)
}

func (a *ArtifactStore) SaveFile(ctx context.Context, session, filename string, data []byte) error {
	if err := validSession(session); err != nil {
		return err
	}
	return a.store.PutObject(ctx, FileKey(session, filename), data)
}

func (a *ArtifactStore) LoadFile(ctx context.Context, session, filename string) ([]byte, error) {
	if err := validSession(session); err != nil {
		return nil, err
	}
	return a.store.GetObject(ctx, FileKey(session, filename))
}

func (a *ArtifactStore) List(ctx context.Context, session string) ([]ObjectInfo, error) {
	if err := validSession(session); err != nil {
		return nil, err
	}
	return a.store.ListObjects(ctx, SessionPrefix(session))
}

func (a *ArtifactStore) DeleteSession(ctx context.Context, session string) error {
	objects, err := a.List(ctx, session)
	if err != nil {
		return err
	}
	for _, o := range objects {
		if err := a.store.DeleteObject(ctx, o.Key); err != nil {
			return err
		}
	}
	return nil
}

func validSession(session string) error {
	if session == "" || strings.ContainsAny(session, `/\`) || session == "." || session == ".." {
		return fmt.Errorf("invalid session key %q", session)
	}
	return nil
}
