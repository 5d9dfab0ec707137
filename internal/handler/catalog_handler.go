package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodmark/internal/catalog"
	"github.com/hitoshi/foodmark/internal/middleware"
	"github.com/hitoshi/foodmark/internal/model"
)

// CatalogServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	List(ctx context.Context, q catalog.Query, now time.Time) ([]catalog.ItemView, error)
	Get(ctx context.Context, id string, now time.Time) (*catalog.ItemView, error)
	Cities(ctx context.Context) ([]string, error)
	Random(ctx context.Context, scope catalog.RandomScope, memberIDs []string, now time.Time) (*catalog.ItemView, error)
	Submit(ctx context.Context, userID string, in catalog.SubmissionInput) (*model.Submission, error)
}

// CatalogHandler は料理の閲覧・ランダム選択・投稿のHTTPハンドラー。
// ログイン中であれば各料理に個人リストの所属状態を付けて返す。
type CatalogHandler struct {
	service CatalogServiceInterface
	lists   ListsRegistry
	now     func() time.Time
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, lists ListsRegistry) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		lists:   lists,
		now:     time.Now,
	}
}

// --- レスポンス型 ---

// membershipFlags は料理ごとの個人リストへの所属状態。
type membershipFlags struct {
	Favorite bool `json:"favorite"`
	Wishlist bool `json:"wishlist"`
	Visited  bool `json:"visited"`
}

// itemResponse は料理一覧の1件。未ログインの場合はMembershipを省略する。
type itemResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	CategoryIDs  []string         `json:"category_ids"`
	Images       []string         `json:"images"`
	Description  string           `json:"description"`
	Address      string           `json:"address"`
	Branches     []string         `json:"branches"`
	City         string           `json:"city"`
	GoogleMapURL string           `json:"google_map_url,omitempty"`
	FacebookURL  string           `json:"facebook_url,omitempty"`
	Tags         []string         `json:"tags"`
	PriceMin     *int             `json:"price_min"`
	PriceMax     *int             `json:"price_max"`
	OpeningHours string           `json:"opening_hours"`
	Phone        string           `json:"phone,omitempty"`
	Status       string           `json:"status"`
	Membership   *membershipFlags `json:"membership,omitempty"`
}

// visitedDetailsResponse は行ったリストの評価とメモ。
type visitedDetailsResponse struct {
	Rating *int    `json:"rating"`
	Notes  *string `json:"notes"`
}

// itemDetailResponse は料理詳細。お気に入りのメモと行ったリストの詳細を含む。
type itemDetailResponse struct {
	itemResponse
	FavoriteNote *string                 `json:"favorite_note,omitempty"`
	Visited      *visitedDetailsResponse `json:"visited,omitempty"`
}

type itemListResponse struct {
	Items []itemResponse `json:"items"`
}

type citiesResponse struct {
	Cities []string `json:"cities"`
}

type submissionResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

func toItemResponse(v catalog.ItemView, lists PersonalLists) itemResponse {
	it := v.Item
	resp := itemResponse{
		ID:           it.ID,
		Name:         it.Name,
		CategoryIDs:  nonNilStrings(it.CategoryIDs),
		Images:       nonNilStrings(it.Images),
		Description:  it.Description,
		Address:      it.Address,
		Branches:     nonNilStrings(it.Branches),
		City:         it.City,
		GoogleMapURL: it.GoogleMapURL,
		FacebookURL:  it.FacebookURL,
		Tags:         nonNilStrings(it.Tags),
		PriceMin:     it.PriceMin,
		PriceMax:     it.PriceMax,
		OpeningHours: it.OpeningHours,
		Phone:        it.Phone,
		Status:       string(v.Status),
	}
	if lists != nil {
		resp.Membership = &membershipFlags{
			Favorite: lists.IsFavorite(it.ID),
			Wishlist: lists.IsWishlisted(it.ID),
			Visited:  lists.IsVisited(it.ID),
		}
	}
	return resp
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// optionalLists はログイン中であれば個人リストを返す。
// 読み込みに失敗した場合は閲覧を止めず、所属状態なしで返す。
func (h *CatalogHandler) optionalLists(r *http.Request) PersonalLists {
	userID := middleware.OptionalUserID(r.Context())
	if userID == "" || h.lists == nil {
		return nil
	}
	lists, err := h.lists.Get(r.Context(), userID)
	if err != nil {
		slog.Warn("failed to load personal lists for browsing",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return lists
}

// ListItems は条件に合う料理の一覧を返す。
// GET /api/items?q=&city=&category=&open_now=
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := catalog.Query{
		Text:     params.Get("q"),
		City:     params.Get("city"),
		Category: params.Get("category"),
	}
	if raw := params.Get("open_now"); raw != "" {
		openNow, err := strconv.ParseBool(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("open_nowはtrueまたはfalseで指定してください"))
			return
		}
		q.OpenNow = &openNow
	}

	views, err := h.service.List(r.Context(), q, h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	lists := h.optionalLists(r)
	resp := itemListResponse{Items: make([]itemResponse, len(views))}
	for i, v := range views {
		resp.Items[i] = toItemResponse(v, lists)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetItem は料理の詳細を返す。
// GET /api/items/{id}
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if !validItemID(w, itemID) {
		return
	}

	view, err := h.service.Get(r.Context(), itemID, h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	lists := h.optionalLists(r)
	resp := itemDetailResponse{itemResponse: toItemResponse(*view, lists)}
	if lists != nil {
		if note, ok := lists.FavoriteNote(itemID); ok {
			resp.FavoriteNote = &note
		}
		if details, ok := lists.VisitedDetails(itemID); ok {
			resp.Visited = &visitedDetailsResponse{Rating: details.Rating, Notes: details.Notes}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cities はカタログに登場する都市の一覧を返す。
// GET /api/cities
func (h *CatalogHandler) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.service.Cities(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, citiesResponse{Cities: cities})
}

// Random は対象範囲から料理を1件ランダムに選ぶ。
// favorites、wishlistの範囲はログインが必要。
// GET /api/random?scope=all|favorites|wishlist
func (h *CatalogHandler) Random(w http.ResponseWriter, r *http.Request) {
	scope, err := catalog.ParseRandomScope(r.URL.Query().Get("scope"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var lists PersonalLists
	var memberIDs []string
	if scope.Personal() {
		userID := middleware.OptionalUserID(r.Context())
		if userID == "" {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.ErrAuthRequired)
			return
		}
		lists, err = h.lists.Get(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		memberIDs = memberIDsOf(lists.Snapshot(), scope)
	} else {
		lists = h.optionalLists(r)
	}

	view, err := h.service.Random(r.Context(), scope, memberIDs, h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(*view, lists))
}

// memberIDsOf は範囲に対応するリストの料理IDを返す。
func memberIDsOf(c model.Collections, scope catalog.RandomScope) []string {
	var ids []string
	switch scope {
	case catalog.ScopeFavorites:
		for _, f := range c.Favorites {
			ids = append(ids, f.ItemID)
		}
	case catalog.ScopeWishlist:
		for _, e := range c.Wishlist {
			ids = append(ids, e.ItemID)
		}
	}
	return ids
}

// Submit はユーザーの料理投稿を受け付ける。承認されるまで一覧には現れない。
// POST /api/submissions
func (h *CatalogHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in catalog.SubmissionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	sub, err := h.service.Submit(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submissionResponse{
		ID:         sub.ID,
		Name:       sub.Name,
		IsApproved: sub.IsApproved,
		CreatedAt:  sub.CreatedAt,
	})
}
