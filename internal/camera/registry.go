package camera

import (
	"fmt"
	"sort"
	"sync"
)

// Registry はソース識別子からワーカーを引くプロセス唯一の台帳
//
// 起動時に作られ、シャットダウン時にReleaseAllで破棄される。
// ここのロックはワーカー内部のロックとは独立しており、登録・検索・削除の
// 間だけ保持される
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*Worker
}

// NewRegistry は空のRegistryを作成する
func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]*Worker),
	}
}

// Register はワーカーを登録する。同じIDの登録はエラー
func (r *Registry) Register(w *Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[w.ID()]; exists {
		return fmt.Errorf("カメラ %s は既に登録されています", w.ID())
	}
	r.workers[w.ID()] = w
	return nil
}

// Get は指定されたIDのワーカーを取得する
func (r *Registry) Get(id string) (*Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, exists := r.workers[id]
	return w, exists
}

// IDs は登録されている全ソース識別子をソートして返す
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Workers は登録されている全ワーカーをID順で返す
func (r *Registry) Workers() []*Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workers := make([]*Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID() < workers[j].ID() })
	return workers
}

// ReleaseAll は全ワーカーを解放して台帳を空にする
// 各ワーカーは録画をフラッシュしてからソースを閉じる
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	workers := r.workers
	r.workers = make(map[string]*Worker)
	r.mu.Unlock()

	// Releaseはワーカーのループ終了を待つため、台帳のロックの外で行う
	for _, w := range workers {
		w.Release()
	}
}
