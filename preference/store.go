// Package preference holds the active interface language, persisted in a
// durable slot and kept coherent across execution contexts that share it.
package preference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/heritage/lang"
	"github.com/pitabwire/heritage/telemetry"
)

// ErrUnsupportedLanguage is returned by SetLanguage for codes outside lang.Supported.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Option configures a Store.
type Option func(*Store)

// WithChangeFeed sets the feed used to exchange change signals with other
// contexts. The default is NoopFeed.
func WithChangeFeed(feed ChangeFeed) Option {
	return func(s *Store) {
		if feed != nil {
			s.feed = feed
		}
	}
}

type listener struct {
	id uint64
	fn func()
}

// Store is the single source of truth for the active language. It is safe
// for concurrent use; listeners may run on the feed goroutine.
type Store struct {
	slot Slot
	feed ChangeFeed

	// writeMu keeps one writer on the slot at a time.
	writeMu sync.Mutex

	mu        sync.RWMutex
	current   lang.Language
	listeners []listener
	nextID    uint64

	changes metric.Int64Counter
}

// NewStore builds a store over slot. Current reports lang.Default until Init
// or SetLanguage runs.
func NewStore(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:    slot,
		feed:    NoopFeed{},
		current: lang.Default,
		changes: telemetry.DimensionlessMeasure("heritage/preference", "changes", "Language changes applied"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Shared reports whether changes made in other contexts can reach this store.
func (s *Store) Shared() bool {
	_, noop := s.feed.(NoopFeed)
	return !noop
}

// Current returns the last known language without blocking on storage.
func (s *Store) Current() lang.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ServerDefault is the language used where no persisted state is reachable.
func (s *Store) ServerDefault() lang.Language {
	return lang.Default
}

// Subscribe registers fn to run after every change. The returned function
// removes it and may be called more than once.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SetLanguage persists language, makes it current and notifies every
// subscriber once, even when the value is unchanged. Nothing changes when
// the write fails.
func (s *Store) SetLanguage(ctx context.Context, language lang.Language) error {
	if !language.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, string(language))
	}

	s.writeMu.Lock()
	err := s.slot.Set(ctx, string(language))
	if err == nil {
		s.apply(ctx, language, true)
	}
	s.writeMu.Unlock()

	if err != nil {
		util.Log(ctx).WithError(err).WithField("language", language).Error("could not persist language")
		return fmt.Errorf("persist language: %w", err)
	}

	if aErr := s.feed.Announce(ctx); aErr != nil {
		util.Log(ctx).WithError(aErr).Warn("could not announce language change")
	}
	return nil
}

// Init reads the persisted language, applies it, notifies subscribers and then
// calls onReady exactly once. Afterwards every change announced by another
// context is re-read from the slot and notified when it differs from the
// current value. cancel stops watching.
func (s *Store) Init(ctx context.Context, onReady func()) (func(), error) {
	s.apply(ctx, s.read(ctx), true)
	if onReady != nil {
		onReady()
	}

	stop, err := s.feed.Watch(ctx, s.sync)
	if err != nil {
		return func() {}, fmt.Errorf("watch preference changes: %w", err)
	}

	var once sync.Once
	return func() { once.Do(stop) }, nil
}

// sync handles an external change signal.
func (s *Store) sync(ctx context.Context) {
	s.apply(ctx, s.read(ctx), false)
}

// read returns the persisted language, falling back to the default when the
// slot is empty, unreadable or holds an unknown code.
func (s *Store) read(ctx context.Context) lang.Language {
	value, found, err := s.slot.Get(ctx)
	if err != nil {
		util.Log(ctx).WithError(err).Warn("could not read persisted language, using default")
		return lang.Default
	}
	if !found {
		return lang.Default
	}

	language := lang.Language(value)
	if !language.Valid() {
		util.Log(ctx).WithField("value", value).Debug("ignoring unrecognised persisted language")
		return lang.Default
	}
	return language
}

// apply stores language and notifies; with always unset, only when it differs.
func (s *Store) apply(ctx context.Context, language lang.Language, always bool) {
	s.mu.Lock()
	changed := s.current != language
	s.current = language
	snapshot := make([]listener, len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	if !changed && !always {
		return
	}
	if changed {
		s.changes.Add(ctx, 1)
	}
	for _, l := range snapshot {
		l.fn()
	}
}
