// Package membership はサインイン中のユーザーの個人リスト（お気に入り・行ってみたい・行った）を
// 保持し、永続化ゲートウェイとの整合性を保つ。
//
// 変更系の操作はすべてライトスルーで、リモートへの書き込みが確定してからローカルの状態を更新する。
// 失敗した場合はローカルの状態に一切手を加えない。同じ(リスト, 料理ID)への変更は直列化され、
// 後から来た操作は先の操作の確定結果を見て判断する。
package membership

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/repository"
)

// ErrIdentityChanged は読み込み中にアイデンティティが切り替わり、結果を破棄したことを表す。
var ErrIdentityChanged = errors.New("identity changed during load")

// ゲートウェイ操作名
const (
	opLoad   = "load"
	opInsert = "insert"
	opDelete = "delete"
	opUpdate = "update"
)

// Gateway は3つの個人リストの永続化先をまとめたもの。
type Gateway struct {
	Favorites repository.FavoriteRepository
	Wishlist  repository.WishlistRepository
	Visited   repository.VisitedRepository
}

// Recorder はゲートウェイ呼び出しと読み込み結果を記録する。
// metrics.Collectorが実装する。
type Recorder interface {
	ObserveGateway(list model.ListKind, op string, err error, elapsed time.Duration)
	ObserveLoad(err error)
}

// NoteCleaner はメモを保存前に整形する。上限を超える場合はエラーを返す。
type NoteCleaner interface {
	CleanNote(note string) (string, error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveGateway(model.ListKind, string, error, time.Duration) {}
func (noopRecorder) ObserveLoad(error)                                          {}

type passthroughCleaner struct{}

func (passthroughCleaner) CleanNote(note string) (string, error) { return note, nil }

// Option はStoreの任意設定。
type Option func(*Store)

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithNoteCleaner はメモの整形処理を設定する。
func WithNoteCleaner(c NoteCleaner) Option {
	return func(s *Store) { s.notes = c }
}

// WithClock は現在時刻の取得関数を差し替える（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store は1つのアイデンティティに紐付く個人リストのローカルミラー。
// 生のコレクションは外部に公開せず、述語・参照系メソッドと変更系メソッドのみを提供する。
type Store struct {
	gw       Gateway
	logger   *slog.Logger
	recorder Recorder
	notes    NoteCleaner
	now      func() time.Time

	// gate は読み込みと変更の排他。変更同士は並行に走り、読み込みは全ての変更を待つ。
	gate sync.RWMutex
	keys *keyLock

	mu         sync.RWMutex
	userID     string
	generation uint64
	cols       model.Collections
	loadedAt   time.Time
}

// NewStore はアイデンティティ未設定の空のStoreを生成する。
func NewStore(gw Gateway, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		gw:       gw,
		logger:   logger,
		recorder: noopRecorder{},
		notes:    passthroughCleaner{},
		now:      time.Now,
		keys:     newKeyLock(),
		cols:     model.EmptyCollections(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID は現在のアイデンティティを返す。未設定の場合は空文字。
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// LoadedAt は最後に読み込みが成功した時刻を返す。未読み込みの場合はゼロ値。
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// SetIdentity はアイデンティティの変化を反映する。
// 空文字は未ログインを表し、3つのリストを空にする。
// 別のユーザーに切り替わった場合はリストを空にしてから読み込み直す。
func (s *Store) SetIdentity(ctx context.Context, userID string) error {
	if !s.switchIdentity(userID) || userID == "" {
		return nil
	}
	_, err := s.Load(ctx)
	return err
}

// switchIdentity はアイデンティティを切り替えてリストを空にする。変化が無ければfalseを返す。
func (s *Store) switchIdentity(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == s.userID {
		return false
	}
	s.userID = userID
	s.generation++
	s.cols = model.EmptyCollections()
	s.loadedAt = time.Time{}
	return true
}

// identity は現在のユーザーIDと世代を返す。
func (s *Store) identity() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.generation
}

// requireIdentity はサインイン中でなければmodel.ErrAuthRequiredを返す。
// 入力の検証より先に呼ぶ。
func (s *Store) requireIdentity() error {
	if userID, _ := s.identity(); userID == "" {
		return model.ErrAuthRequired
	}
	return nil
}

// Load は3つのリストを並行して読み込み、ローカルの状態を置き換える。
// いずれか1つでも失敗した場合は3つとも空にしてGatewayErrorを返す（部分的な状態は見せない）。
func (s *Store) Load(ctx context.Context) (model.Collections, error) {
	userID, gen := s.identity()
	if userID == "" {
		return model.EmptyCollections(), model.ErrAuthRequired
	}

	// 実行中の変更が確定するまで待ち、読み込み中の新たな変更を止める
	s.gate.Lock()
	defer s.gate.Unlock()

	var (
		favorites []model.FavoriteEntry
		wishlist  []model.WishlistEntry
		visited   []model.VisitedEntry
	)

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		favorites, err = observe(s, model.ListFavorites, opLoad, func() ([]model.FavoriteEntry, error) {
			return s.gw.Favorites.ListByUserID(ctx, userID)
		})
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		wishlist, err = observe(s, model.ListWishlist, opLoad, func() ([]model.WishlistEntry, error) {
			return s.gw.Wishlist.ListByUserID(ctx, userID)
		})
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		visited, err = observe(s, model.ListVisited, opLoad, func() ([]model.VisitedEntry, error) {
			return s.gw.Visited.ListByUserID(ctx, userID)
		})
		return err
	})
	err := p.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Info("アイデンティティが切り替わったため読み込み結果を破棄しました",
			slog.String("user_id", userID),
		)
		return model.EmptyCollections(), ErrIdentityChanged
	}

	s.recorder.ObserveLoad(err)
	if err != nil {
		s.cols = model.EmptyCollections()
		s.loadedAt = time.Time{}
		s.logger.Error("個人リストの読み込みに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return model.EmptyCollections(), err
	}

	s.cols = model.Collections{
		Favorites: nonNil(favorites),
		Wishlist:  nonNil(wishlist),
		Visited:   nonNil(visited),
	}
	s.loadedAt = s.now()
	s.logger.Debug("個人リストを読み込みました",
		slog.String("user_id", userID),
		slog.Int("favorites", len(s.cols.Favorites)),
		slog.Int("wishlist", len(s.cols.Wishlist)),
		slog.Int("visited", len(s.cols.Visited)),
	)
	return s.cols.Clone(), nil
}

// observe はゲートウェイ呼び出しを計測し、失敗をGatewayErrorで包む。
func observe[T any](s *Store, list model.ListKind, op string, call func() (T, error)) (T, error) {
	start := time.Now()
	v, err := call()
	s.recorder.ObserveGateway(list, op, err, time.Since(start))
	if err != nil {
		return v, &model.GatewayError{Op: op, List: list, Err: err}
	}
	return v, nil
}

// exec は戻り値の無いゲートウェイ呼び出しを計測する。
func (s *Store) exec(list model.ListKind, op string, call func() error) error {
	_, err := observe(s, list, op, func() (struct{}, error) {
		return struct{}{}, call()
	})
	return err
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// Snapshot は現在の3つのリストのディープコピーを返す。
func (s *Store) Snapshot() model.Collections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols.Clone()
}

// IsFavorite はお気に入りに登録済みかを判定する。
func (s *Store) IsFavorite(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favoriteIndex(itemID) >= 0
}

// IsWishlisted は行ってみたいリストに登録済みかを判定する。
func (s *Store) IsWishlisted(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wishlistIndex(itemID) >= 0
}

// IsVisited は行ったリストに登録済みかを判定する。
func (s *Store) IsVisited(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visitedIndex(itemID) >= 0
}

// FavoriteNote はお気に入りのメモを返す。未登録の場合はfalse。
func (s *Store) FavoriteNote(itemID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.favoriteIndex(itemID)
	if i < 0 {
		return "", false
	}
	return s.cols.Favorites[i].Note, true
}

// VisitedDetails は行ったリストの評価とメモを返す。未登録の場合はfalse。
func (s *Store) VisitedDetails(itemID string) (model.VisitedDetails, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.visitedIndex(itemID)
	if i < 0 {
		return model.VisitedDetails{}, false
	}
	v := s.cols.Visited[i].Clone()
	return model.VisitedDetails{Rating: v.Rating, Notes: v.Notes}, true
}

func (s *Store) favoriteIndex(itemID string) int {
	for i, e := range s.cols.Favorites {
		if e.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (s *Store) wishlistIndex(itemID string) int {
	for i, e := range s.cols.Wishlist {
		if e.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (s *Store) visitedIndex(itemID string) int {
	for i, e := range s.cols.Visited {
		if e.ItemID == itemID {
			return i
		}
	}
	return -1
}

// mutation は変更系操作の共通手順を実行する。
// アイデンティティの確認、料理IDの検証、読み込みとの排他、キー単位の直列化を行ってから
// fnを呼び出す。fnがnilを返した場合のみapplyでローカルの状態を更新する。
func (s *Store) mutation(
	list model.ListKind,
	itemID string,
	fn func(userID string) error,
	apply func(),
) error {
	// 検証中にサインアウトした場合もここで拒否する
	userID, gen := s.identity()
	if userID == "" {
		return model.ErrAuthRequired
	}
	if strings.TrimSpace(itemID) == "" {
		return model.NewInvalidRequestError("料理IDが空です")
	}

	s.gate.RLock()
	defer s.gate.RUnlock()

	unlock := s.keys.Lock(listKey(string(list), itemID))
	defer unlock()

	if err := fn(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		// 書き込みは旧ユーザーに対して確定済み。現在の状態は別ユーザーのものなので触らない
		return nil
	}
	apply()
	return nil
}

// ToggleWishlist は行ってみたいリストへの登録状態を反転し、反転後の状態を返す。
func (s *Store) ToggleWishlist(ctx context.Context, itemID string) (bool, error) {
	var added bool
	err := s.mutation(model.ListWishlist, itemID,
		func(userID string) error {
			added = !s.IsWishlisted(itemID)
			if added {
				return s.exec(model.ListWishlist, opInsert, func() error {
					return s.gw.Wishlist.Insert(ctx, userID, itemID)
				})
			}
			return s.exec(model.ListWishlist, opDelete, func() error {
				return s.gw.Wishlist.Delete(ctx, userID, itemID)
			})
		},
		func() {
			i := s.wishlistIndex(itemID)
			switch {
			case added && i < 0:
				s.cols.Wishlist = append(s.cols.Wishlist, model.WishlistEntry{ItemID: itemID})
			case !added && i >= 0:
				s.cols.Wishlist = removeAt(s.cols.Wishlist, i)
			}
		},
	)
	if err != nil {
		return s.IsWishlisted(itemID), err
	}
	return added, nil
}

// ToggleVisited は行ったリストへの登録状態を反転し、反転後の状態を返す。
// 新規登録時の評価とメモは未設定（nil）になる。解除すると評価とメモも消える。
func (s *Store) ToggleVisited(ctx context.Context, itemID string) (bool, error) {
	var added bool
	err := s.mutation(model.ListVisited, itemID,
		func(userID string) error {
			added = !s.IsVisited(itemID)
			if added {
				return s.exec(model.ListVisited, opInsert, func() error {
					return s.gw.Visited.Insert(ctx, userID, itemID)
				})
			}
			return s.exec(model.ListVisited, opDelete, func() error {
				return s.gw.Visited.Delete(ctx, userID, itemID)
			})
		},
		func() {
			i := s.visitedIndex(itemID)
			switch {
			case added && i < 0:
				s.cols.Visited = append(s.cols.Visited, model.VisitedEntry{ItemID: itemID})
			case !added && i >= 0:
				s.cols.Visited = removeAt(s.cols.Visited, i)
			}
		},
	)
	if err != nil {
		return s.IsVisited(itemID), err
	}
	return added, nil
}

// AddFavorite はお気に入りに登録する。登録済みの場合はメモを上書きする。
func (s *Store) AddFavorite(ctx context.Context, itemID, note string) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	cleaned, err := s.notes.CleanNote(note)
	if err != nil {
		return err
	}
	return s.mutation(model.ListFavorites, itemID,
		func(userID string) error {
			return s.exec(model.ListFavorites, opInsert, func() error {
				return s.gw.Favorites.Insert(ctx, userID, itemID, cleaned)
			})
		},
		func() { s.putFavorite(itemID, cleaned) },
	)
}

// RemoveFavorite はお気に入りから外す。未登録でもエラーにしない。
func (s *Store) RemoveFavorite(ctx context.Context, itemID string) error {
	return s.mutation(model.ListFavorites, itemID,
		func(userID string) error {
			return s.exec(model.ListFavorites, opDelete, func() error {
				return s.gw.Favorites.Delete(ctx, userID, itemID)
			})
		},
		func() {
			if i := s.favoriteIndex(itemID); i >= 0 {
				s.cols.Favorites = removeAt(s.cols.Favorites, i)
			}
		},
	)
}

// UpdateFavoriteNote はお気に入りのメモを更新する。
// リモートに対象が無い場合はENTRY_NOT_FOUNDを返し、ローカルの状態は変えない。
func (s *Store) UpdateFavoriteNote(ctx context.Context, itemID, note string) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	cleaned, err := s.notes.CleanNote(note)
	if err != nil {
		return err
	}
	return s.mutation(model.ListFavorites, itemID,
		func(userID string) error {
			err := s.exec(model.ListFavorites, opUpdate, func() error {
				return s.gw.Favorites.UpdateNote(ctx, userID, itemID, cleaned)
			})
			if errors.Is(err, repository.ErrNotFound) {
				return model.NewEntryNotFoundError(model.ListFavorites, itemID)
			}
			return err
		},
		func() { s.putFavorite(itemID, cleaned) },
	)
}

// putFavorite はローカルのお気に入りを追加または更新する。s.muを保持して呼ぶこと。
func (s *Store) putFavorite(itemID, note string) {
	if i := s.favoriteIndex(itemID); i >= 0 {
		s.cols.Favorites[i].Note = note
		return
	}
	s.cols.Favorites = append(s.cols.Favorites, model.FavoriteEntry{ItemID: itemID, Note: note})
}

// UpdateVisited は行ったリストの評価とメモを設定する。未登録なら登録も行う。
// 評価は1〜5またはnilのみ受け付け、範囲外はゲートウェイを呼ばずにINVALID_RATINGを返す。
func (s *Store) UpdateVisited(ctx context.Context, itemID string, details model.VisitedDetails) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	if !model.ValidRating(details.Rating) {
		return model.NewInvalidRatingError(*details.Rating)
	}
	if details.Notes != nil {
		cleaned, err := s.notes.CleanNote(*details.Notes)
		if err != nil {
			return err
		}
		details.Notes = &cleaned
	}
	entry := model.VisitedEntry{ItemID: itemID, Rating: details.Rating, Notes: details.Notes}.Clone()

	return s.mutation(model.ListVisited, itemID,
		func(userID string) error {
			return s.exec(model.ListVisited, opUpdate, func() error {
				return s.gw.Visited.Upsert(ctx, userID, itemID, details)
			})
		},
		func() {
			if i := s.visitedIndex(itemID); i >= 0 {
				s.cols.Visited[i] = entry
				return
			}
			s.cols.Visited = append(s.cols.Visited, entry)
		},
	)
}

// removeAt はi番目の要素を順序を保って取り除いた新しいスライスを返す。
// スナップショットと背後の配列を共有しないよう常にコピーする。
func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
