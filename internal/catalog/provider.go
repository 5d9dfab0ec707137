package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/hitoshi/foodmark/internal/model"
)

// ErrCatalogUnavailable は全てのソースから取得に失敗した場合に返される。
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Provider は複数のソースを登録順に結合する。
// 同じIDの項目は先に登録されたソースのものを採用する。キャッシュは持たず、呼び出しごとに全ソースを読む。
type Provider struct {
	sources []Source
	logger  *slog.Logger
}

// NewProvider はProviderを生成する。
func NewProvider(logger *slog.Logger, sources ...Source) *Provider {
	return &Provider{sources: sources, logger: logger}
}

// Items は全ソースを並行に読み込んで結合する。
// 一部のソースが失敗しても残りのソースの項目を返す。全て失敗した場合のみErrCatalogUnavailableを返す。
func (p *Provider) Items(ctx context.Context) ([]model.CatalogItem, error) {
	if len(p.sources) == 0 {
		return nil, nil
	}

	results := make([][]model.CatalogItem, len(p.sources))
	errs := make([]error, len(p.sources))

	wp := pool.New().WithContext(ctx)
	for i, src := range p.sources {
		wp.Go(func(ctx context.Context) error {
			results[i], errs[i] = src.Items(ctx)
			return nil
		})
	}
	_ = wp.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			p.logger.Error("カタログソースの読み込みに失敗しました",
				slog.String("source", p.sources[i].Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	if failed == len(p.sources) {
		return nil, errors.Join(ErrCatalogUnavailable, errors.Join(errs...))
	}

	return merge(results, p.logger), nil
}

// merge は先勝ちでIDの重複を取り除く。
func merge(groups [][]model.CatalogItem, logger *slog.Logger) []model.CatalogItem {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	seen := make(map[string]struct{}, total)
	out := make([]model.CatalogItem, 0, total)
	duplicates := 0
	for _, g := range groups {
		for _, item := range g {
			if _, dup := seen[item.ID]; dup {
				duplicates++
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, item)
		}
	}
	if duplicates > 0 {
		logger.Debug("重複したカタログ項目を除外しました", slog.Int("duplicates", duplicates))
	}
	return out
}
