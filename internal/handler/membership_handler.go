package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodmark/internal/model"
)

// PersonalLists はサインイン中のユーザー1人分の個人リスト。membership.Storeが実装する。
type PersonalLists interface {
	Snapshot() model.Collections
	IsFavorite(itemID string) bool
	IsWishlisted(itemID string) bool
	IsVisited(itemID string) bool
	FavoriteNote(itemID string) (string, bool)
	VisitedDetails(itemID string) (model.VisitedDetails, bool)

	Load(ctx context.Context) (model.Collections, error)
	ToggleWishlist(ctx context.Context, itemID string) (bool, error)
	ToggleVisited(ctx context.Context, itemID string) (bool, error)
	AddFavorite(ctx context.Context, itemID, note string) error
	RemoveFavorite(ctx context.Context, itemID string) error
	UpdateFavoriteNote(ctx context.Context, itemID, note string) error
	UpdateVisited(ctx context.Context, itemID string, details model.VisitedDetails) error
}

// ListsRegistry はユーザーIDから個人リストを引く。
type ListsRegistry interface {
	// Get は読み込み済みの個人リストを返す。初回の読み込みに失敗した場合はGatewayErrorを返す。
	Get(ctx context.Context, userID string) (PersonalLists, error)
}

// MembershipHandler は個人リスト（お気に入り・行ってみたい・行った）のHTTPハンドラー。
type MembershipHandler struct {
	lists ListsRegistry
}

// NewMembershipHandler はMembershipHandlerを生成する。
func NewMembershipHandler(lists ListsRegistry) *MembershipHandler {
	return &MembershipHandler{lists: lists}
}

// --- リクエスト・レスポンス型 ---

// favoriteRequest はお気に入りの登録・メモ更新リクエストのボディ。
type favoriteRequest struct {
	Note string `json:"note"`
}

// visitedRequest は行ったリストの評価・メモ更新リクエストのボディ。
type visitedRequest struct {
	Rating *int    `json:"rating"`
	Notes  *string `json:"notes"`
}

type favoriteResponse struct {
	ItemID string `json:"item_id"`
	Note   string `json:"note"`
}

type wishlistResponse struct {
	ItemID string `json:"item_id"`
}

type visitedResponse struct {
	ItemID string  `json:"item_id"`
	Rating *int    `json:"rating"`
	Notes  *string `json:"notes"`
}

// listsResponse は3つの個人リストのレスポンス。空のリストも [] で返す。
type listsResponse struct {
	Favorites []favoriteResponse `json:"favorites"`
	Wishlist  []wishlistResponse `json:"wishlist"`
	Visited   []visitedResponse  `json:"visited"`
}

// toggleResponse はトグル操作後の所属状態。
type toggleResponse struct {
	ItemID string `json:"item_id"`
	Member bool   `json:"member"`
}

func toListsResponse(c model.Collections) listsResponse {
	resp := listsResponse{
		Favorites: make([]favoriteResponse, len(c.Favorites)),
		Wishlist:  make([]wishlistResponse, len(c.Wishlist)),
		Visited:   make([]visitedResponse, len(c.Visited)),
	}
	for i, f := range c.Favorites {
		resp.Favorites[i] = favoriteResponse{ItemID: f.ItemID, Note: f.Note}
	}
	for i, e := range c.Wishlist {
		resp.Wishlist[i] = wishlistResponse{ItemID: e.ItemID}
	}
	for i, v := range c.Visited {
		resp.Visited[i] = visitedResponse{ItemID: v.ItemID, Rating: v.Rating, Notes: v.Notes}
	}
	return resp
}

// listsFor は認証済みユーザーの個人リストを返す。失敗時はレスポンスを書き込みnilを返す。
func (h *MembershipHandler) listsFor(w http.ResponseWriter, r *http.Request) PersonalLists {
	userID, ok := requireUserID(w, r)
	if !ok {
		return nil
	}
	lists, err := h.lists.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return nil
	}
	return lists
}

// itemParam はURLの料理IDを検証して返す。
func itemParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	itemID := chi.URLParam(r, "itemID")
	if !validItemID(w, itemID) {
		return "", false
	}
	return itemID, true
}

// GetLists は3つの個人リストを返す。
// GET /api/me/lists
func (h *MembershipHandler) GetLists(w http.ResponseWriter, r *http.Request) {
	lists := h.listsFor(w, r)
	if lists == nil {
		return
	}
	writeJSON(w, http.StatusOK, toListsResponse(lists.Snapshot()))
}

// ReloadLists は保存先から個人リストを読み込み直す。失敗時は3つのリストとも空になる。
// POST /api/me/lists/reload
func (h *MembershipHandler) ReloadLists(w http.ResponseWriter, r *http.Request) {
	lists := h.listsFor(w, r)
	if lists == nil {
		return
	}
	cols, err := lists.Load(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListsResponse(cols))
}

// PutFavorite はお気に入りに登録する。登録済みの場合はメモを上書きする。
// PUT /api/me/favorites/{itemID}
func (h *MembershipHandler) PutFavorite(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemParam(w, r)
	if !ok {
		return
	}
	var req favoriteRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	lists := h.listsFor(w, r)
	if lists == nil {
		return
	}
	if err := lists.AddFavorite(r.Context(), itemID, req.Note); err != nil {
		handleServiceError(w, err)
		return
	}
	note, _ := lists.FavoriteNote(itemID)
	writeJSON(w, http.StatusOK, favoriteResponse{ItemID: itemID, Note: note})
}

// PatchFavorite は登録済みのお気に入りのメモを更新する。
// PATCH /api/me/favorites/{itemID}
func (h *MembershipHandler) PatchFavorite(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemParam(w, r)
	if !ok {
		return
	}
	var req favoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lists := h.listsFor(w, r)
	if lists == nil {
		return
	}
	if err := lists.UpdateFavoriteNote(r.Context(), itemID, req.Note); err != nil {
		handleServiceError(w, err)
		return
	}
	note, _ := lists.FavoriteNote(itemID)
	writeJSON(w, http.StatusOK, favoriteResponse{ItemID: itemID, Note: note})
}

// DeleteFavorite はお気に入りから外す。
// DELETE /api/me/favorites/{itemID}
func (h *MembershipHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemParam(w, r)
	if !ok {
		return
	}
	lists := h.listsFor(w, r)
	if lists == nil {
		return
	}
	if err := lists.RemoveFavorite(r.Context(), itemID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleWishlist は行ってみたいリストへの登録状態を反転する。
// POST /api/me/wishlist/{itemID}/toggle
func (h *MembershipHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, PersonalLists.ToggleWishlist)
}

// ToggleVisited は行ったリストへの登録状態を反転する。
// POST /api/me/visited/{itemID}/toggle
func (h *MembershipHandler) ToggleVisited(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, PersonalLists.ToggleVisited)
}

func (h *MembershipHandler) toggle(
	w http.ResponseWriter,
	r *http.Request,
	op func(PersonalLists, context.Context, string) (bool, error),
) {
	itemID, ok := itemParam(w, r)
	if !ok {
		return
	}
	lists := h.listsFor(w, r)
	if lists == nil {
		return
	}
	member, err := op(lists, r.Context(), itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{ItemID: itemID, Member: member})
}

// PutVisited は行ったリストの評価とメモを設定する。未登録なら登録も行う。
// PUT /api/me/visited/{itemID}
func (h *MembershipHandler) PutVisited(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemParam(w, r)
	if !ok {
		return
	}
	var req visitedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lists := h.listsFor(w, r)
	if lists == nil {
		return
	}
	details := model.VisitedDetails{Rating: req.Rating, Notes: req.Notes}
	if err := lists.UpdateVisited(r.Context(), itemID, details); err != nil {
		handleServiceError(w, err)
		return
	}
	saved, _ := lists.VisitedDetails(itemID)
	writeJSON(w, http.StatusOK, visitedResponse{ItemID: itemID, Rating: saved.Rating, Notes: saved.Notes})
}
