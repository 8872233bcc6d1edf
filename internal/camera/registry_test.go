package camera

import (
	"testing"
)

// newRegistryWorker はレジストリテスト用の最小構成のワーカーを作成する
func newRegistryWorker(t *testing.T, id string) *Worker {
	t.Helper()
	src := &fakeFrameSource{opened: true, readOK: true}
	w := NewWorker(Source{ID: id, Name: id}, src, nil, WorkerConfig{RecordingFolder: t.TempDir()}, nil)
	t.Cleanup(w.Release)
	return w
}

// TestRegistryRegisterAndGet は登録と検索をテストする
func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()

	w := newRegistryWorker(t, "webcam")
	if err := registry.Register(w); err != nil {
		t.Fatalf("登録に失敗しました: %v", err)
	}

	got, found := registry.Get("webcam")
	if !found {
		t.Fatal("登録したワーカーが見つかりません")
	}
	if got != w {
		t.Error("取得したワーカーが登録したものと異なります")
	}

	if _, found := registry.Get("unknown"); found {
		t.Error("未登録IDでワーカーが見つかってはいけない")
	}
}

// TestRegistryDuplicateID は同一IDの二重登録がエラーになることをテストする
func TestRegistryDuplicateID(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(newRegistryWorker(t, "webcam")); err != nil {
		t.Fatalf("登録に失敗しました: %v", err)
	}
	if err := registry.Register(newRegistryWorker(t, "webcam")); err == nil {
		t.Error("同一IDの二重登録はエラーになるはず")
	}
}

// TestRegistryOrdering はIDsとWorkersがソート済みで返ることをテストする
func TestRegistryOrdering(t *testing.T) {
	registry := NewRegistry()
	for _, id := range []string{"garage", "entrance", "backyard"} {
		if err := registry.Register(newRegistryWorker(t, id)); err != nil {
			t.Fatalf("登録に失敗しました: %v", err)
		}
	}

	ids := registry.IDs()
	want := []string{"backyard", "entrance", "garage"}
	if len(ids) != len(want) {
		t.Fatalf("ID数が不正: %v", ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("IDs[%d]が不正: got %s, want %s", i, ids[i], id)
		}
	}

	workers := registry.Workers()
	for i, id := range want {
		if workers[i].ID() != id {
			t.Errorf("Workers[%d]が不正: got %s, want %s", i, workers[i].ID(), id)
		}
	}
}

// TestRegistryReleaseAll は全ワーカーの解放と台帳のクリアをテストする
func TestRegistryReleaseAll(t *testing.T) {
	registry := NewRegistry()

	src := &fakeFrameSource{opened: true, readOK: true}
	w := NewWorker(Source{ID: "webcam", Name: "Webcam"}, src, nil, WorkerConfig{RecordingFolder: t.TempDir()}, nil)
	if err := registry.Register(w); err != nil {
		t.Fatalf("登録に失敗しました: %v", err)
	}

	registry.ReleaseAll()

	if src.IsOpened() {
		t.Error("ReleaseAll後もソースが開いたままです")
	}
	if len(registry.IDs()) != 0 {
		t.Error("ReleaseAll後も台帳にワーカーが残っています")
	}

	// 空の台帳に対しても安全
	registry.ReleaseAll()
}
