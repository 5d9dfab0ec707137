package model

import "time"

// CatalogItem は閲覧対象の料理（店舗）を表す。
// 静的データ、リモートカタログ、ユーザー投稿のいずれから来ても同じ形に正規化される。
type CatalogItem struct {
	ID           string
	Name         string
	CategoryIDs  []string
	Images       []string
	Description  string
	Address      string   // 代表住所（支店がある場合は先頭の支店）
	Branches     []string // 複数店舗の住所。単一店舗の場合はAddressのみの1件
	City         string
	GoogleMapURL string
	FacebookURL  string
	Tags         []string
	PriceMin     *int
	PriceMax     *int
	OpeningHours string // 例: "7:30 AM–10 PM"。未設定の場合は空文字
	Phone        string
	SubmittedBy  string // ユーザー投稿の場合の投稿者ID
	CreatedAt    time.Time
}

// HasCategory は料理が指定カテゴリに属するかを判定する。
func (c *CatalogItem) HasCategory(categoryID string) bool {
	for _, id := range c.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Submission はユーザーが投稿した料理の未承認データを表す。
type Submission struct {
	ID           string
	UserID       string
	Name         string
	CategoryID   string
	Images       []string
	Description  string
	Address      string
	City         string
	GoogleMapURL string
	FacebookURL  string
	Tags         []string
	PriceMin     *int
	PriceMax     *int
	OpeningHours string
	Phone        string
	IsApproved   bool
	CreatedAt    time.Time
}

// ToCatalogItem は承認済みの投稿をカタログ項目に変換する。
func (s *Submission) ToCatalogItem() CatalogItem {
	images := s.Images
	if len(images) == 0 {
		images = []string{PlaceholderImage}
	}
	var categories []string
	if s.CategoryID != "" {
		categories = []string{s.CategoryID}
	}
	return CatalogItem{
		ID:           s.ID,
		Name:         s.Name,
		CategoryIDs:  categories,
		Images:       images,
		Description:  s.Description,
		Address:      s.Address,
		Branches:     []string{s.Address},
		City:         s.City,
		GoogleMapURL: s.GoogleMapURL,
		FacebookURL:  s.FacebookURL,
		Tags:         s.Tags,
		PriceMin:     s.PriceMin,
		PriceMax:     s.PriceMax,
		OpeningHours: s.OpeningHours,
		Phone:        s.Phone,
		SubmittedBy:  s.UserID,
		CreatedAt:    s.CreatedAt,
	}
}

// PlaceholderImage は画像が無い料理に使う代替画像のパス。
const PlaceholderImage = "/placeholder.svg"
