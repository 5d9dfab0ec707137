package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/hitoshi/foodmark/internal/catalog"
	"github.com/hitoshi/foodmark/internal/middleware"
	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/openhours"
)

// apiErrorBody は統一エラーフォーマットのレスポンスボディ。
type apiErrorBody = middleware.ErrorResponseBody

// withUserID はリクエストのコンテキストにユーザーIDを注入するテストヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// decodeError はエラーレスポンスのボディをデコードする。
func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiErrorBody {
	t.Helper()
	var body apiErrorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

// fixedClock は2026-03-01 12:00 UTCを返し続ける時計。
func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

// --- 個人リストのフェイク ---

// fakeLists はPersonalListsのメモリ上のフェイク。
// failWith が設定されている場合、変更系の操作はそのエラーを返し状態を変えない。
type fakeLists struct {
	cols     model.Collections
	failWith error
	loads    int
	calls    []string
}

func newFakeLists() *fakeLists {
	return &fakeLists{cols: model.EmptyCollections()}
}

func (f *fakeLists) Snapshot() model.Collections { return f.cols.Clone() }

func (f *fakeLists) IsFavorite(itemID string) bool {
	_, ok := f.FavoriteNote(itemID)
	return ok
}

func (f *fakeLists) IsWishlisted(itemID string) bool {
	return slices.ContainsFunc(f.cols.Wishlist, func(e model.WishlistEntry) bool { return e.ItemID == itemID })
}

func (f *fakeLists) IsVisited(itemID string) bool {
	_, ok := f.VisitedDetails(itemID)
	return ok
}

func (f *fakeLists) FavoriteNote(itemID string) (string, bool) {
	for _, e := range f.cols.Favorites {
		if e.ItemID == itemID {
			return e.Note, true
		}
	}
	return "", false
}

func (f *fakeLists) VisitedDetails(itemID string) (model.VisitedDetails, bool) {
	for _, e := range f.cols.Visited {
		if e.ItemID == itemID {
			return model.VisitedDetails{Rating: e.Rating, Notes: e.Notes}, true
		}
	}
	return model.VisitedDetails{}, false
}

func (f *fakeLists) Load(ctx context.Context) (model.Collections, error) {
	f.loads++
	if f.failWith != nil {
		return model.Collections{}, f.failWith
	}
	return f.Snapshot(), nil
}

func (f *fakeLists) ToggleWishlist(ctx context.Context, itemID string) (bool, error) {
	f.calls = append(f.calls, "wishlist.toggle:"+itemID)
	if f.failWith != nil {
		return f.IsWishlisted(itemID), f.failWith
	}
	if f.IsWishlisted(itemID) {
		f.cols.Wishlist = slices.DeleteFunc(f.cols.Wishlist, func(e model.WishlistEntry) bool { return e.ItemID == itemID })
		return false, nil
	}
	f.cols.Wishlist = append(f.cols.Wishlist, model.WishlistEntry{ItemID: itemID})
	return true, nil
}

func (f *fakeLists) ToggleVisited(ctx context.Context, itemID string) (bool, error) {
	f.calls = append(f.calls, "visited.toggle:"+itemID)
	if f.failWith != nil {
		return f.IsVisited(itemID), f.failWith
	}
	if f.IsVisited(itemID) {
		f.cols.Visited = slices.DeleteFunc(f.cols.Visited, func(e model.VisitedEntry) bool { return e.ItemID == itemID })
		return false, nil
	}
	f.cols.Visited = append(f.cols.Visited, model.VisitedEntry{ItemID: itemID})
	return true, nil
}

func (f *fakeLists) AddFavorite(ctx context.Context, itemID, note string) error {
	f.calls = append(f.calls, "favorites.add:"+itemID)
	if f.failWith != nil {
		return f.failWith
	}
	for i, e := range f.cols.Favorites {
		if e.ItemID == itemID {
			f.cols.Favorites[i].Note = note
			return nil
		}
	}
	f.cols.Favorites = append(f.cols.Favorites, model.FavoriteEntry{ItemID: itemID, Note: note})
	return nil
}

func (f *fakeLists) RemoveFavorite(ctx context.Context, itemID string) error {
	f.calls = append(f.calls, "favorites.remove:"+itemID)
	if f.failWith != nil {
		return f.failWith
	}
	f.cols.Favorites = slices.DeleteFunc(f.cols.Favorites, func(e model.FavoriteEntry) bool { return e.ItemID == itemID })
	return nil
}

func (f *fakeLists) UpdateFavoriteNote(ctx context.Context, itemID, note string) error {
	f.calls = append(f.calls, "favorites.update:"+itemID)
	if f.failWith != nil {
		return f.failWith
	}
	for i, e := range f.cols.Favorites {
		if e.ItemID == itemID {
			f.cols.Favorites[i].Note = note
			return nil
		}
	}
	return model.NewEntryNotFoundError(model.ListFavorites, itemID)
}

func (f *fakeLists) UpdateVisited(ctx context.Context, itemID string, details model.VisitedDetails) error {
	f.calls = append(f.calls, "visited.update:"+itemID)
	if !model.ValidRating(details.Rating) {
		return model.NewInvalidRatingError(*details.Rating)
	}
	if f.failWith != nil {
		return f.failWith
	}
	entry := model.VisitedEntry{ItemID: itemID, Rating: details.Rating, Notes: details.Notes}
	for i, e := range f.cols.Visited {
		if e.ItemID == itemID {
			f.cols.Visited[i] = entry
			return nil
		}
	}
	f.cols.Visited = append(f.cols.Visited, entry)
	return nil
}

// mockListsRegistry はListsRegistryのモック実装。
type mockListsRegistry struct {
	getFn func(ctx context.Context, userID string) (PersonalLists, error)
}

func (m *mockListsRegistry) Get(ctx context.Context, userID string) (PersonalLists, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return newFakeLists(), nil
}

// registryOf は指定ユーザーに対してだけlistsを返すレジストリを生成する。
func registryOf(userID string, lists *fakeLists) *mockListsRegistry {
	return &mockListsRegistry{
		getFn: func(ctx context.Context, id string) (PersonalLists, error) {
			if id != userID {
				return newFakeLists(), nil
			}
			return lists, nil
		},
	}
}

// --- カタログサービスのモック ---

type mockCatalogService struct {
	listFn   func(ctx context.Context, q catalog.Query, now time.Time) ([]catalog.ItemView, error)
	getFn    func(ctx context.Context, id string, now time.Time) (*catalog.ItemView, error)
	citiesFn func(ctx context.Context) ([]string, error)
	randomFn func(ctx context.Context, scope catalog.RandomScope, memberIDs []string, now time.Time) (*catalog.ItemView, error)
	submitFn func(ctx context.Context, userID string, in catalog.SubmissionInput) (*model.Submission, error)
}

func (m *mockCatalogService) List(ctx context.Context, q catalog.Query, now time.Time) ([]catalog.ItemView, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q, now)
	}
	return nil, nil
}

func (m *mockCatalogService) Get(ctx context.Context, id string, now time.Time) (*catalog.ItemView, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id, now)
	}
	return nil, model.NewItemNotFoundError(id)
}

func (m *mockCatalogService) Cities(ctx context.Context) ([]string, error) {
	if m.citiesFn != nil {
		return m.citiesFn(ctx)
	}
	return []string{}, nil
}

func (m *mockCatalogService) Random(ctx context.Context, scope catalog.RandomScope, memberIDs []string, now time.Time) (*catalog.ItemView, error) {
	if m.randomFn != nil {
		return m.randomFn(ctx, scope, memberIDs, now)
	}
	return nil, model.NewNoCandidatesError()
}

func (m *mockCatalogService) Submit(ctx context.Context, userID string, in catalog.SubmissionInput) (*model.Submission, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, in)
	}
	return &model.Submission{ID: "sub-1", UserID: userID, Name: in.Name}, nil
}

// view はテスト用のItemViewを生成する。
func view(id, name string, status openhours.Status) catalog.ItemView {
	return catalog.ItemView{
		Item: model.CatalogItem{
			ID:           id,
			Name:         name,
			CategoryIDs:  []string{"noodle"},
			Images:       []string{model.PlaceholderImage},
			Address:      "1 Hang Bac",
			Branches:     []string{"1 Hang Bac"},
			City:         "Ha Noi",
			OpeningHours: "7:00 AM–10:00 PM",
		},
		Status: status,
	}
}
