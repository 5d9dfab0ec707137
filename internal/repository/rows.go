package repository

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/hitoshi/foodmark/internal/model"
)

// RowReport は行のマッピング時に読み飛ばした件数を表す。
type RowReport struct {
	Invalid    int // 料理IDが空などで採用しなかった行
	Duplicates int // 同じ料理IDの2行目以降
}

// Clean は読み飛ばした行が無いかを判定する。
func (r RowReport) Clean() bool {
	return r.Invalid == 0 && r.Duplicates == 0
}

// logIfDirty は読み飛ばした行があれば警告ログを出力する。
func (r RowReport) logIfDirty(list model.ListKind, userID string) {
	if r.Clean() {
		return
	}
	slog.Warn("個人リストの読み込みで不正な行を読み飛ばしました",
		slog.String("list", string(list)),
		slog.String("user_id", userID),
		slog.Int("invalid", r.Invalid),
		slog.Int("duplicates", r.Duplicates),
	)
}

// favoriteRow はfavoritesテーブルの生の行。
type favoriteRow struct {
	ItemID sql.NullString
	Note   sql.NullString
}

// wishlistRow はwishlistテーブルの生の行。
type wishlistRow struct {
	ItemID sql.NullString
}

// visitedRow はvisitedテーブルの生の行。
type visitedRow struct {
	ItemID sql.NullString
	Rating sql.NullInt64
	Notes  sql.NullString
}

// normalizeItemID は料理IDを正規化する。空の場合はfalseを返す。
func normalizeItemID(id sql.NullString) (string, bool) {
	if !id.Valid {
		return "", false
	}
	trimmed := strings.TrimSpace(id.String)
	return trimmed, trimmed != ""
}

// seenSet は料理IDの重複を検出する。先に現れた行を優先する。
type seenSet map[string]struct{}

func (s seenSet) add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// mapFavoriteRows はfavoritesの行をFavoriteEntryに変換する。
// NULLのメモは空文字に正規化する。
func mapFavoriteRows(rows []favoriteRow) ([]model.FavoriteEntry, RowReport) {
	var report RowReport
	seen := seenSet{}
	entries := make([]model.FavoriteEntry, 0, len(rows))

	for _, row := range rows {
		id, ok := normalizeItemID(row.ItemID)
		if !ok {
			report.Invalid++
			continue
		}
		if !seen.add(id) {
			report.Duplicates++
			continue
		}
		entries = append(entries, model.FavoriteEntry{
			ItemID: id,
			Note:   row.Note.String,
		})
	}
	return entries, report
}

// mapWishlistRows はwishlistの行をWishlistEntryに変換する。
func mapWishlistRows(rows []wishlistRow) ([]model.WishlistEntry, RowReport) {
	var report RowReport
	seen := seenSet{}
	entries := make([]model.WishlistEntry, 0, len(rows))

	for _, row := range rows {
		id, ok := normalizeItemID(row.ItemID)
		if !ok {
			report.Invalid++
			continue
		}
		if !seen.add(id) {
			report.Duplicates++
			continue
		}
		entries = append(entries, model.WishlistEntry{ItemID: id})
	}
	return entries, report
}

// mapVisitedRows はvisitedの行をVisitedEntryに変換する。
// 範囲外の評価は未評価として扱い、行自体は採用する。
func mapVisitedRows(rows []visitedRow) ([]model.VisitedEntry, RowReport) {
	var report RowReport
	seen := seenSet{}
	entries := make([]model.VisitedEntry, 0, len(rows))

	for _, row := range rows {
		id, ok := normalizeItemID(row.ItemID)
		if !ok {
			report.Invalid++
			continue
		}
		if !seen.add(id) {
			report.Duplicates++
			continue
		}

		entry := model.VisitedEntry{ItemID: id}
		if row.Rating.Valid {
			rating := int(row.Rating.Int64)
			if model.ValidRating(&rating) {
				entry.Rating = &rating
			} else {
				report.Invalid++
			}
		}
		if row.Notes.Valid {
			notes := row.Notes.String
			entry.Notes = &notes
		}
		entries = append(entries, entry)
	}
	return entries, report
}

// nullableInt は*intをSQLのパラメータに変換する。
func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// nullableString は*stringをSQLのパラメータに変換する。
func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
