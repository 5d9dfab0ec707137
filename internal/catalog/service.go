package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/openhours"
	"github.com/hitoshi/foodmark/internal/validation"
)

// ItemSource はカタログ項目の一覧を返す。Providerが実装する。
type ItemSource interface {
	Items(ctx context.Context) ([]model.CatalogItem, error)
}

// SubmissionWriter は投稿の保存先。
type SubmissionWriter interface {
	Create(ctx context.Context, s *model.Submission) error
}

// TextCleaner は投稿テキストからマークアップを除去する。
type TextCleaner interface {
	StripTags(text string) string
}

// URLValidator は投稿されたリンクの安全性を検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ItemView はカタログ項目と、評価時点の営業状態の組。
type ItemView struct {
	Item   model.CatalogItem
	Status openhours.Status
}

// Query は一覧の絞り込み条件。空の条件は絞り込まない。
type Query struct {
	Text     string
	City     string
	Category string
	// OpenNow がtrueなら営業中のみ、falseなら営業時間外のみを返す。
	// 営業時間が不明な項目はどちらの場合も含めない。
	OpenNow *bool
}

// RandomScope はランダム選択の対象範囲。
type RandomScope string

const (
	ScopeAll       RandomScope = "all"
	ScopeFavorites RandomScope = "favorites"
	ScopeWishlist  RandomScope = "wishlist"
)

// ParseRandomScope は文字列をRandomScopeに変換する。空文字はScopeAll。
func ParseRandomScope(s string) (RandomScope, error) {
	switch RandomScope(s) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeFavorites, ScopeWishlist:
		return RandomScope(s), nil
	default:
		return "", model.NewInvalidScopeError(s)
	}
}

// Personal は個人リストの対象範囲か（ログインが必要か）を返す。
func (s RandomScope) Personal() bool {
	return s == ScopeFavorites || s == ScopeWishlist
}

// Service はカタログの検索・ランダム選択・投稿を提供する。
type Service struct {
	items       ItemSource
	submissions SubmissionWriter
	text        TextCleaner
	urls        URLValidator
	logger      *slog.Logger
	now         func() time.Time
	intN        func(n int) int
}

// NewService はServiceを生成する。
func NewService(items ItemSource, submissions SubmissionWriter, text TextCleaner, urls URLValidator, logger *slog.Logger) *Service {
	return &Service{
		items:       items,
		submissions: submissions,
		text:        text,
		urls:        urls,
		logger:      logger,
		now:         time.Now,
		intN:        rand.IntN,
	}
}

// List は条件に合う項目を、nowにおける営業状態と共に返す。
func (s *Service) List(ctx context.Context, q Query, now time.Time) ([]ItemView, error) {
	items, err := s.items.Items(ctx)
	if err != nil {
		return nil, err
	}

	text := strings.ToLower(strings.TrimSpace(q.Text))
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		if text != "" && !matchesText(item, text) {
			continue
		}
		if q.City != "" && item.City != q.City {
			continue
		}
		if q.Category != "" && !item.HasCategory(q.Category) {
			continue
		}
		status := openhours.Evaluate(item.OpeningHours, now)
		if q.OpenNow != nil {
			want := openhours.StatusClosed
			if *q.OpenNow {
				want = openhours.StatusOpen
			}
			if status != want {
				continue
			}
		}
		views = append(views, ItemView{Item: item, Status: status})
	}
	return views, nil
}

// matchesText は名前・タグ・住所（全支店）のいずれかにtextが含まれるかを判定する。
func matchesText(item model.CatalogItem, text string) bool {
	if strings.Contains(strings.ToLower(item.Name), text) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), text) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(item.Address), text) {
		return true
	}
	for _, b := range item.Branches {
		if strings.Contains(strings.ToLower(b), text) {
			return true
		}
	}
	return false
}

// Get はIDで項目を取得する。存在しない場合はITEM_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string, now time.Time) (*ItemView, error) {
	items, err := s.items.Items(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ID == id {
			return &ItemView{Item: item, Status: openhours.Evaluate(item.OpeningHours, now)}, nil
		}
	}
	return nil, model.NewItemNotFoundError(id)
}

// Cities はカタログに登場する都市を重複なく昇順で返す。
func (s *Service) Cities(ctx context.Context) ([]string, error) {
	items, err := s.items.Items(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	cities := make([]string, 0)
	for _, item := range items {
		if item.City == "" {
			continue
		}
		if _, ok := seen[item.City]; ok {
			continue
		}
		seen[item.City] = struct{}{}
		cities = append(cities, item.City)
	}
	slices.Sort(cities)
	return cities, nil
}

// Random は対象範囲から1件をランダムに選ぶ。
// ScopeAll以外ではmemberIDsに含まれる項目だけが候補になる。
// 候補が無い場合はNO_CANDIDATESを返す。
func (s *Service) Random(ctx context.Context, scope RandomScope, memberIDs []string, now time.Time) (*ItemView, error) {
	items, err := s.items.Items(ctx)
	if err != nil {
		return nil, err
	}

	candidates := items
	if scope.Personal() {
		members := make(map[string]struct{}, len(memberIDs))
		for _, id := range memberIDs {
			members[id] = struct{}{}
		}
		candidates = make([]model.CatalogItem, 0, len(memberIDs))
		for _, item := range items {
			if _, ok := members[item.ID]; ok {
				candidates = append(candidates, item)
			}
		}
	}

	if len(candidates) == 0 {
		return nil, model.NewNoCandidatesError()
	}
	item := candidates[s.intN(len(candidates))]
	return &ItemView{Item: item, Status: openhours.Evaluate(item.OpeningHours, now)}, nil
}

// SubmissionInput はユーザー投稿の入力。
type SubmissionInput struct {
	Name         string   `json:"name" validate:"notblank,max=100"`
	CategoryID   string   `json:"category_id" validate:"notblank,max=50"`
	Images       []string `json:"images" validate:"max=10,dive,http_url,max=500"`
	Description  string   `json:"description" validate:"max=500"`
	Address      string   `json:"address" validate:"notblank,max=200"`
	City         string   `json:"city" validate:"notblank,max=50"`
	GoogleMapURL string   `json:"google_map_url" validate:"omitempty,http_url,max=500"`
	FacebookURL  string   `json:"facebook_url" validate:"omitempty,http_url,max=500"`
	Tags         []string `json:"tags" validate:"max=20,dive,notblank,max=30"`
	PriceMin     *int     `json:"price_min" validate:"omitempty,gte=0"`
	PriceMax     *int     `json:"price_max" validate:"omitempty,gte=0"`
	OpeningHours string   `json:"opening_hours" validate:"max=50"`
	Phone        string   `json:"phone" validate:"max=20"`
}

// Submit は投稿を検証して未承認のまま保存する。
// 承認されるまでカタログには現れない。
func (s *Service) Submit(ctx context.Context, userID string, in SubmissionInput) (*model.Submission, error) {
	if userID == "" {
		return nil, model.ErrAuthRequired
	}
	if verr := validation.Struct(&in); verr != nil {
		return nil, model.NewInvalidSubmissionError(verr.Error())
	}
	if in.PriceMin != nil && in.PriceMax != nil && *in.PriceMin > *in.PriceMax {
		return nil, model.NewInvalidSubmissionError("最低価格は最高価格以下で指定してください")
	}

	links := append([]string{}, in.Images...)
	if in.GoogleMapURL != "" {
		links = append(links, in.GoogleMapURL)
	}
	if in.FacebookURL != "" {
		links = append(links, in.FacebookURL)
	}
	for _, link := range links {
		if err := s.urls.ValidateURL(link); err != nil {
			return nil, model.NewInvalidSubmissionError(fmt.Sprintf("使用できないURLです: %s", link))
		}
	}

	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		if t := s.text.StripTags(tag); t != "" {
			tags = append(tags, t)
		}
	}

	sub := &model.Submission{
		ID:           uuid.New().String(),
		UserID:       userID,
		Name:         s.text.StripTags(in.Name),
		CategoryID:   strings.TrimSpace(in.CategoryID),
		Images:       in.Images,
		Description:  s.text.StripTags(in.Description),
		Address:      s.text.StripTags(in.Address),
		City:         s.text.StripTags(in.City),
		GoogleMapURL: in.GoogleMapURL,
		FacebookURL:  in.FacebookURL,
		Tags:         tags,
		PriceMin:     in.PriceMin,
		PriceMax:     in.PriceMax,
		OpeningHours: s.text.StripTags(in.OpeningHours),
		Phone:        s.text.StripTags(in.Phone),
		CreatedAt:    s.now(),
	}
	if sub.Name == "" || sub.Address == "" || sub.City == "" {
		return nil, model.NewInvalidSubmissionError("名前・住所・都市は必須です")
	}

	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("投稿の保存に失敗しました: %w", err)
	}

	s.logger.Info("料理の投稿を受け付けました",
		slog.String("submission_id", sub.ID),
		slog.String("user_id", userID),
	)
	return sub, nil
}
