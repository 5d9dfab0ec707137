package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/foodmark/internal/model"
)

// rawItem はカタログJSONの1項目。
// 過去のデータには画像・住所が文字列の場合と配列の場合、価格が数値の場合と文字列の場合が混在する。
type rawItem struct {
	ID            flexString  `json:"id"`
	Name          string      `json:"ten"`
	CategoryIDs   flexStrings `json:"loaiIds"`
	Images        flexStrings `json:"hinhAnh"`
	Description   string      `json:"moTa"`
	Address       flexStrings `json:"diaChi"`
	City          string      `json:"thanhPho"`
	GoogleMapLink string      `json:"googleMapLink"`
	FacebookLink  string      `json:"facebookLink"`
	Tags          flexStrings `json:"tags"`
	PriceMin      flexInt     `json:"giaMin"`
	PriceMax      flexInt     `json:"giaMax"`
	CreatedAt     string      `json:"ngayTao"`
	OpeningHours  string      `json:"gioMoCua"`
	Phone         flexString  `json:"soDienThoai"`
}

// normalize はIDと名前の無い項目をfalseで弾き、それ以外を正規化する。
func (r rawItem) normalize() (model.CatalogItem, bool) {
	id := strings.TrimSpace(string(r.ID))
	name := strings.TrimSpace(r.Name)
	if id == "" || name == "" {
		return model.CatalogItem{}, false
	}

	images := r.Images.values()
	if len(images) == 0 {
		images = []string{model.PlaceholderImage}
	}
	branches := r.Address.values()
	var address string
	if len(branches) > 0 {
		address = branches[0]
	}

	item := model.CatalogItem{
		ID:           id,
		Name:         name,
		CategoryIDs:  r.CategoryIDs.values(),
		Images:       images,
		Description:  strings.TrimSpace(r.Description),
		Address:      address,
		Branches:     branches,
		City:         strings.TrimSpace(r.City),
		GoogleMapURL: strings.TrimSpace(r.GoogleMapLink),
		FacebookURL:  strings.TrimSpace(r.FacebookLink),
		Tags:         r.Tags.values(),
		PriceMin:     r.PriceMin.ptr(),
		PriceMax:     r.PriceMax.ptr(),
		OpeningHours: strings.TrimSpace(r.OpeningHours),
		Phone:        strings.TrimSpace(string(r.Phone)),
		CreatedAt:    parseDate(r.CreatedAt),
	}
	return item, true
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate は解釈できない日付をゼロ値にする。
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// flexString は文字列と数値の両方を受け付ける。
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("string or number expected: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexStrings は単一の文字列と文字列配列の両方を受け付ける。
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexStrings{s}
		return nil
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("string or string array expected: %w", err)
		}
		*f = list
		return nil
	}
}

// values は空白を除去し、空要素を取り除いた値を返す。
func (f flexStrings) values() []string {
	out := make([]string, 0, len(f))
	for _, v := range f {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// flexInt は数値と、"50.000" や "50,000đ" のような文字列表記の価格を受け付ける。
// 解釈できない値は未設定として扱う。
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = flexInt{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, ok := parsePrice(s); ok {
			*f = flexInt{value: v, set: true}
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	if n >= 0 {
		*f = flexInt{value: int(n), set: true}
	}
	return nil
}

func (f flexInt) ptr() *int {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

// parsePrice は桁区切りと通貨記号を取り除いて整数にする。
func parsePrice(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "VND"), "đ")
	s = strings.NewReplacer(".", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
