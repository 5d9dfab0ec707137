package membership

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/repository"
)

var errBackend = errors.New("backend unavailable")

// fakeLists はユーザーごとの3つのリストをメモリ上に保持するゲートウェイのフェイク。
// 各操作の前に呼ばれるフックでエラー注入や同期を行う。
type fakeLists struct {
	mu sync.Mutex

	favorites map[string][]model.FavoriteEntry
	wishlist  map[string][]model.WishlistEntry
	visited   map[string][]model.VisitedEntry

	calls map[string]int

	// hook は操作名（例: "wishlist.insert"）を受け取り、エラーを返すと操作を失敗させる。
	hook func(op string) error
}

func newFakeLists() *fakeLists {
	return &fakeLists{
		favorites: map[string][]model.FavoriteEntry{},
		wishlist:  map[string][]model.WishlistEntry{},
		visited:   map[string][]model.VisitedEntry{},
		calls:     map[string]int{},
	}
}

func (f *fakeLists) gateway() Gateway {
	return Gateway{
		Favorites: fakeFavorites{f},
		Wishlist:  fakeWishlist{f},
		Visited:   fakeVisited{f},
	}
}

// before は呼び出し回数を記録し、フックを実行する。
func (f *fakeLists) before(op string) error {
	f.mu.Lock()
	f.calls[op]++
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		return hook(op)
	}
	return nil
}

func (f *fakeLists) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeLists) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeLists) wishlistRows(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.wishlist[userID])
}

func (f *fakeLists) visitedRows(userID string) []model.VisitedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.VisitedEntry(nil), f.visited[userID]...)
}

type fakeFavorites struct{ f *fakeLists }

func (g fakeFavorites) ListByUserID(ctx context.Context, userID string) ([]model.FavoriteEntry, error) {
	if err := g.f.before("favorites.list"); err != nil {
		return nil, err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	return append([]model.FavoriteEntry(nil), g.f.favorites[userID]...), nil
}

func (g fakeFavorites) Insert(ctx context.Context, userID, itemID, note string) error {
	if err := g.f.before("favorites.insert"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	for i, e := range g.f.favorites[userID] {
		if e.ItemID == itemID {
			g.f.favorites[userID][i].Note = note
			return nil
		}
	}
	g.f.favorites[userID] = append(g.f.favorites[userID], model.FavoriteEntry{ItemID: itemID, Note: note})
	return nil
}

func (g fakeFavorites) Delete(ctx context.Context, userID, itemID string) error {
	if err := g.f.before("favorites.delete"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	rows := g.f.favorites[userID]
	for i, e := range rows {
		if e.ItemID == itemID {
			g.f.favorites[userID] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (g fakeFavorites) UpdateNote(ctx context.Context, userID, itemID, note string) error {
	if err := g.f.before("favorites.update"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	for i, e := range g.f.favorites[userID] {
		if e.ItemID == itemID {
			g.f.favorites[userID][i].Note = note
			return nil
		}
	}
	return repository.ErrNotFound
}

func (g fakeFavorites) DeleteByUserID(ctx context.Context, userID string) error {
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	delete(g.f.favorites, userID)
	return nil
}

type fakeWishlist struct{ f *fakeLists }

func (g fakeWishlist) ListByUserID(ctx context.Context, userID string) ([]model.WishlistEntry, error) {
	if err := g.f.before("wishlist.list"); err != nil {
		return nil, err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	return append([]model.WishlistEntry(nil), g.f.wishlist[userID]...), nil
}

// Insert は一意制約の無いバックエンドを模して、既存でも行を追加する。
func (g fakeWishlist) Insert(ctx context.Context, userID, itemID string) error {
	if err := g.f.before("wishlist.insert"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	g.f.wishlist[userID] = append(g.f.wishlist[userID], model.WishlistEntry{ItemID: itemID})
	return nil
}

func (g fakeWishlist) Delete(ctx context.Context, userID, itemID string) error {
	if err := g.f.before("wishlist.delete"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	var kept []model.WishlistEntry
	for _, e := range g.f.wishlist[userID] {
		if e.ItemID != itemID {
			kept = append(kept, e)
		}
	}
	g.f.wishlist[userID] = kept
	return nil
}

func (g fakeWishlist) DeleteByUserID(ctx context.Context, userID string) error {
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	delete(g.f.wishlist, userID)
	return nil
}

type fakeVisited struct{ f *fakeLists }

func (g fakeVisited) ListByUserID(ctx context.Context, userID string) ([]model.VisitedEntry, error) {
	if err := g.f.before("visited.list"); err != nil {
		return nil, err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	return append([]model.VisitedEntry(nil), g.f.visited[userID]...), nil
}

func (g fakeVisited) Insert(ctx context.Context, userID, itemID string) error {
	if err := g.f.before("visited.insert"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	g.f.visited[userID] = append(g.f.visited[userID], model.VisitedEntry{ItemID: itemID})
	return nil
}

func (g fakeVisited) Delete(ctx context.Context, userID, itemID string) error {
	if err := g.f.before("visited.delete"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	var kept []model.VisitedEntry
	for _, e := range g.f.visited[userID] {
		if e.ItemID != itemID {
			kept = append(kept, e)
		}
	}
	g.f.visited[userID] = kept
	return nil
}

func (g fakeVisited) Upsert(ctx context.Context, userID, itemID string, details model.VisitedDetails) error {
	if err := g.f.before("visited.update"); err != nil {
		return err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	entry := model.VisitedEntry{ItemID: itemID, Rating: details.Rating, Notes: details.Notes}.Clone()
	for i, e := range g.f.visited[userID] {
		if e.ItemID == itemID {
			g.f.visited[userID][i] = entry
			return nil
		}
	}
	g.f.visited[userID] = append(g.f.visited[userID], entry)
	return nil
}

func (g fakeVisited) DeleteByUserID(ctx context.Context, userID string) error {
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	delete(g.f.visited, userID)
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// failOn は指定した操作のみ失敗させるフックを返す。
func failOn(target string) func(op string) error {
	return func(op string) error {
		if op == target {
			return errBackend
		}
		return nil
	}
}
