package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Repository owns the cached blob. Every operation re-reads the backend,
// normalizes legacy shapes, runs the caller's closure under one mutex and,
// for updates, commits the whole blob back. That makes the
// load-mutate-save sequence single-writer within the process.
type Repository struct {
	mu    sync.Mutex
	store Store
	log   *zap.Logger

	now func() time.Time
}

func NewRepository(store Store, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{store: store, log: log, now: time.Now}
}

func (r *Repository) refresh(ctx context.Context) (*Data, error) {
	d, err := r.store.Load(ctx)
	if err != nil {
		r.log.Error("state load failed", zap.Error(err))
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	d.normalize(r.now())
	return d, nil
}

// View runs fn against a fresh snapshot. Mutations made inside fn are
// discarded, not persisted.
func (r *Repository) View(ctx context.Context, fn func(*Data) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.refresh(ctx)
	if err != nil {
		return err
	}
	return fn(d)
}

// Update runs fn against a fresh snapshot and commits it when fn reports a
// mutation. A false return leaves the backend untouched (the "unchanged"
// paths must not stamp anything). fn errors abort the commit.
func (r *Repository) Update(ctx context.Context, fn func(*Data) (bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.refresh(ctx)
	if err != nil {
		return err
	}
	dirty, err := fn(d)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if err := r.store.Save(ctx, d); err != nil {
		r.log.Error("state save failed", zap.Error(err))
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Now exposes the repository clock so mutations stamp consistent times.
func (r *Repository) Now() time.Time { return r.now() }

// UserLanguage returns the stored language preference, or "" if none.
func (r *Repository) UserLanguage(ctx context.Context, userID string) (string, error) {
	var lang string
	err := r.View(ctx, func(d *Data) error {
		lang = d.Users[userID].Language
		return nil
	})
	return lang, err
}

// SetUserLanguage stores the user's language preference in the blob. Message
// catalogs live with the chat gateway; the bot only remembers the choice.
func (r *Repository) SetUserLanguage(ctx context.Context, userID, language string) error {
	return r.Update(ctx, func(d *Data) (bool, error) {
		d.Users[userID] = UserPrefs{Language: language}
		return true, nil
	})
}
