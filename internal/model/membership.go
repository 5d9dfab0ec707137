package model

// ListKind は個人リストの種別を表す。
type ListKind string

const (
	// ListFavorites はお気に入り。メモを持つ。
	ListFavorites ListKind = "favorites"
	// ListWishlist は行ってみたいリスト。所属のみを表す。
	ListWishlist ListKind = "wishlist"
	// ListVisited は行ったリスト。評価とメモを持つ。
	ListVisited ListKind = "visited"
)

// Label はユーザー向けのリスト名を返す。
func (k ListKind) Label() string {
	switch k {
	case ListFavorites:
		return "お気に入り"
	case ListWishlist:
		return "行ってみたいリスト"
	case ListVisited:
		return "行ったリスト"
	default:
		return string(k)
	}
}

// 評価の許容範囲
const (
	MinRating = 1
	MaxRating = 5
)

// FavoriteEntry はお気に入りの1件を表す。
// Noteは空文字を許容し、正規化後にnilになることはない。
type FavoriteEntry struct {
	ItemID string
	Note   string
}

// WishlistEntry は行ってみたいリストの1件を表す。
type WishlistEntry struct {
	ItemID string
}

// VisitedEntry は行ったリストの1件を表す。
// Ratingは未評価の場合nil、評価済みの場合1〜5。
type VisitedEntry struct {
	ItemID string
	Rating *int
	Notes  *string
}

// Clone はポインタフィールドを複製したコピーを返す。
func (v VisitedEntry) Clone() VisitedEntry {
	return VisitedEntry{
		ItemID: v.ItemID,
		Rating: cloneInt(v.Rating),
		Notes:  cloneString(v.Notes),
	}
}

// VisitedDetails は行ったリストの評価・メモ部分。
type VisitedDetails struct {
	Rating *int
	Notes  *string
}

// ValidRating はratingが許容範囲内かを判定する。nilは未評価として許容する。
func ValidRating(rating *int) bool {
	return rating == nil || (*rating >= MinRating && *rating <= MaxRating)
}

// Collections はサインイン中のユーザーの3つの個人リスト。
// リモートの状態をローカルに映したもの。
type Collections struct {
	Favorites []FavoriteEntry
	Wishlist  []WishlistEntry
	Visited   []VisitedEntry
}

// EmptyCollections は3つのリストがすべて空のCollectionsを返す。
// nilではなく空スライスを持つため、JSONでは [] として出力される。
func EmptyCollections() Collections {
	return Collections{
		Favorites: []FavoriteEntry{},
		Wishlist:  []WishlistEntry{},
		Visited:   []VisitedEntry{},
	}
}

// Clone はCollectionsのディープコピーを返す。
func (c Collections) Clone() Collections {
	out := Collections{
		Favorites: make([]FavoriteEntry, len(c.Favorites)),
		Wishlist:  make([]WishlistEntry, len(c.Wishlist)),
		Visited:   make([]VisitedEntry, len(c.Visited)),
	}
	copy(out.Favorites, c.Favorites)
	copy(out.Wishlist, c.Wishlist)
	for i, v := range c.Visited {
		out.Visited[i] = v.Clone()
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
