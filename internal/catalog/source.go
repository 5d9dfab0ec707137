// Package catalog は料理カタログの取得と検索を提供する。
//
// カタログは静的JSONファイル、リモートJSON、承認済みユーザー投稿の3種類のソースから構成され、
// どのソースから来た項目も model.CatalogItem の1つの形に正規化される。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hitoshi/foodmark/internal/model"
)

// Source はカタログ項目の供給元。
type Source interface {
	Name() string
	Items(ctx context.Context) ([]model.CatalogItem, error)
}

// FileSource はディレクトリ内の *.json を読み込むソース。
// 1ファイルに1項目（オブジェクト）または複数項目（配列）を置ける。
type FileSource struct {
	dir    string
	logger *slog.Logger
}

// NewFileSource はFileSourceを生成する。
func NewFileSource(dir string, logger *slog.Logger) *FileSource {
	return &FileSource{dir: dir, logger: logger}
}

func (s *FileSource) Name() string { return "file" }

// Items はファイル名順に全項目を読み込む。
// 壊れたファイルや必須項目の欠けた項目は警告を出して読み飛ばす。
func (s *FileSource) Items(ctx context.Context) ([]model.CatalogItem, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("カタログファイルの列挙に失敗しました: %w", err)
	}
	sort.Strings(paths)

	var items []model.CatalogItem
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("カタログファイルの読み込みに失敗しました: %s: %w", path, err)
		}
		raws, err := decodeRawItems(data)
		if err != nil {
			s.logger.Warn("カタログファイルを解析できないため読み飛ばします",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		items = append(items, normalizeAll(raws, s.logger, "file:"+filepath.Base(path))...)
	}
	return items, nil
}

// RemoteSource はHTTPで取得したJSON配列を読み込むソース。
// clientにはSSRF対策とサイズ上限を施したクライアントを渡す。
type RemoteSource struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewRemoteSource はRemoteSourceを生成する。
func NewRemoteSource(url string, client *http.Client, logger *slog.Logger) *RemoteSource {
	return &RemoteSource{url: url, client: client, logger: logger}
}

func (s *RemoteSource) Name() string { return "remote" }

func (s *RemoteSource) Items(ctx context.Context) ([]model.CatalogItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("リモートカタログのリクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リモートカタログの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("リモートカタログの取得に失敗しました: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("リモートカタログの読み込みに失敗しました: %w", err)
	}
	raws, err := decodeRawItems(data)
	if err != nil {
		return nil, fmt.Errorf("リモートカタログを解析できません: %w", err)
	}
	return normalizeAll(raws, s.logger, "remote"), nil
}

// SubmissionLister は承認済み投稿の取得元。
type SubmissionLister interface {
	ListApproved(ctx context.Context) ([]*model.Submission, error)
}

// SubmissionSource は承認済みのユーザー投稿を読み込むソース。
type SubmissionSource struct {
	repo SubmissionLister
}

// NewSubmissionSource はSubmissionSourceを生成する。
func NewSubmissionSource(repo SubmissionLister) *SubmissionSource {
	return &SubmissionSource{repo: repo}
}

func (s *SubmissionSource) Name() string { return "submissions" }

func (s *SubmissionSource) Items(ctx context.Context) ([]model.CatalogItem, error) {
	subs, err := s.repo.ListApproved(ctx)
	if err != nil {
		return nil, fmt.Errorf("承認済み投稿の取得に失敗しました: %w", err)
	}
	items := make([]model.CatalogItem, 0, len(subs))
	for _, sub := range subs {
		items = append(items, sub.ToCatalogItem())
	}
	return items, nil
}

// decodeRawItems は単一オブジェクトと配列の両方を受け付ける。
func decodeRawItems(data []byte) ([]rawItem, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var raws []rawItem
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return []rawItem{raw}, nil
}

func normalizeAll(raws []rawItem, logger *slog.Logger, origin string) []model.CatalogItem {
	items := make([]model.CatalogItem, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		item, ok := raw.normalize()
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}
	if skipped > 0 {
		logger.Warn("IDまたは名前の無いカタログ項目を読み飛ばしました",
			slog.String("origin", origin),
			slog.Int("skipped", skipped),
		)
	}
	return items
}
