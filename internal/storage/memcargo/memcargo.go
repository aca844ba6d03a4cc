// Package memcargo: хранилище учёта в памяти процесса. Используется в тестах
// и при storage_driver: memory.
package memcargo

import (
	"context"
	"sync"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/storage"
)

type state struct {
	// txMu сериализует транзакции и одиночные записи вне транзакции.
	txMu sync.Mutex
	mu   sync.RWMutex

	items    map[int64]*models.TrackingItem
	manifest map[string]*models.ManifestEntry
	history  []*models.StatusHistoryRecord
	imports  []*models.ImportLog

	itemSeq     int64
	manifestSeq int64
	historySeq  int64
	importSeq   int64
}

type Storage struct {
	st   *state
	inTx bool
}

var _ storage.Store = (*Storage)(nil)

func New() *Storage {
	return &Storage{st: &state{
		items:    make(map[int64]*models.TrackingItem),
		manifest: make(map[string]*models.ManifestEntry),
	}}
}

func (s *Storage) Close() {}

// InTx откатывает все изменения fn при ошибке или панике.
func (s *Storage) InTx(ctx context.Context, fn func(tx storage.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.RLock()
	snap := s.st.snapshot()
	s.st.mu.RUnlock()

	restore := func() {
		s.st.mu.Lock()
		s.st.restore(snap)
		s.st.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = fn(&Storage{st: s.st, inTx: true}); err != nil {
		restore()
	}
	return err
}

func (s *Storage) write(fn func(st *state) error) error {
	if !s.inTx {
		s.st.txMu.Lock()
		defer s.st.txMu.Unlock()
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return fn(s.st)
}

func (s *Storage) read(fn func(st *state) error) error {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	return fn(s.st)
}

type snapshot struct {
	items    map[int64]*models.TrackingItem
	manifest map[string]*models.ManifestEntry
	history  []*models.StatusHistoryRecord
	imports  []*models.ImportLog
	seqs     [4]int64
}

// snapshot копирует только контейнеры и сами записи; история и логи
// неизменяемы, поэтому достаточно среза.
func (st *state) snapshot() snapshot {
	sn := snapshot{
		items:    make(map[int64]*models.TrackingItem, len(st.items)),
		manifest: make(map[string]*models.ManifestEntry, len(st.manifest)),
		history:  st.history[:len(st.history):len(st.history)],
		imports:  st.imports[:len(st.imports):len(st.imports)],
		seqs:     [4]int64{st.itemSeq, st.manifestSeq, st.historySeq, st.importSeq},
	}
	for id, it := range st.items {
		sn.items[id] = cloneItem(it)
	}
	for code, e := range st.manifest {
		sn.manifest[code] = cloneManifest(e)
	}
	return sn
}

func (st *state) restore(sn snapshot) {
	st.items = sn.items
	st.manifest = sn.manifest
	st.history = sn.history
	st.imports = sn.imports
	st.itemSeq, st.manifestSeq, st.historySeq, st.importSeq = sn.seqs[0], sn.seqs[1], sn.seqs[2], sn.seqs[3]
}
