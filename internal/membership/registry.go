package membership

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/foodmark/internal/model"
)

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	ReloadInterval  time.Duration // 最後の読み込みからこの時間が経過したら次のアクセスで読み込み直す。0以下で無効
	IdleTTL         time.Duration // 最終アクセスからこの時間が経過したStoreを破棄する
	CleanupInterval time.Duration // 破棄対象を探す間隔
}

// DefaultRegistryConfig はデフォルトの設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ReloadInterval:  5 * time.Minute,
		IdleTTL:         30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// registryEntry はユーザーごとのStoreと最終アクセス時刻を保持する。
type registryEntry struct {
	store      *Store
	lastAccess time.Time
}

// Registry はサインイン中のユーザーごとにStoreを1つずつ管理する。
// セッションで識別されたユーザーの初回アクセスで読み込み、ログアウト・退会で破棄する。
type Registry struct {
	gw     Gateway
	logger *slog.Logger
	config RegistryConfig
	opts   []Option
	now    func() time.Time

	mu     sync.Mutex
	stores map[string]*registryEntry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry は新しいRegistryを生成する。
// optsは生成する各Storeに適用される。Startを呼ぶまで破棄処理は動かない。
func NewRegistry(gw Gateway, logger *slog.Logger, config RegistryConfig, opts ...Option) *Registry {
	return &Registry{
		gw:     gw,
		logger: logger,
		config: config,
		opts:   opts,
		now:    time.Now,
		stores: make(map[string]*registryEntry),
		stopCh: make(chan struct{}),
	}
}

// Start はバックグラウンドで期限切れStoreの破棄を開始する。
func (r *Registry) Start() {
	if r.config.CleanupInterval <= 0 || r.config.IdleTTL <= 0 {
		return
	}
	go r.cleanupLoop()
}

// Stop は破棄処理のバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Get はユーザーのStoreを返す。
// 初回アクセスまたは再読み込み間隔を過ぎている場合は読み込みを行う。
// 初回の読み込みに失敗した場合はStoreを登録せずにエラーを返す。
func (r *Registry) Get(ctx context.Context, userID string) (*Store, error) {
	if userID == "" {
		return nil, model.ErrAuthRequired
	}

	r.mu.Lock()
	entry, exists := r.stores[userID]
	if exists {
		entry.lastAccess = r.now()
		r.mu.Unlock()
		if err := r.refresh(ctx, entry.store); err != nil {
			return nil, err
		}
		return entry.store, nil
	}

	// 並行して同じユーザーのGetが来ても読み込み前のStoreが未ログイン扱いにならないよう、
	// 登録前にアイデンティティを設定しておく
	store := NewStore(r.gw, r.logger, r.opts...)
	store.switchIdentity(userID)
	entry = &registryEntry{store: store, lastAccess: r.now()}
	r.stores[userID] = entry
	r.mu.Unlock()

	if _, err := store.Load(ctx); err != nil {
		r.forget(userID, entry)
		return nil, err
	}
	return store, nil
}

// refresh は読み込みが古い、または前回失敗している場合に読み込み直す。
func (r *Registry) refresh(ctx context.Context, store *Store) error {
	loadedAt := store.LoadedAt()
	if !loadedAt.IsZero() {
		if r.config.ReloadInterval <= 0 || r.now().Sub(loadedAt) < r.config.ReloadInterval {
			return nil
		}
	}
	_, err := store.Load(ctx)
	return err
}

// forget はエントリが変わっていなければ登録を外す。
func (r *Registry) forget(userID string, entry *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.stores[userID]; ok && current == entry {
		delete(r.stores, userID)
	}
}

// Release はユーザーのStoreを破棄し、保持していたリストを空にする。
// ログアウトや退会でアイデンティティが失われたときに呼ぶ。
func (r *Registry) Release(userID string) {
	r.mu.Lock()
	entry, exists := r.stores[userID]
	delete(r.stores, userID)
	r.mu.Unlock()

	if !exists {
		return
	}
	r.clear(userID, entry)
	r.logger.Debug("個人リストを破棄しました", slog.String("user_id", userID))
}

// clear はStoreのアイデンティティを外してリストを空にする。
// 空文字への切り替えはゲートウェイを呼ばないため現状は失敗しないが、失敗した場合は記録する。
func (r *Registry) clear(userID string, entry *registryEntry) {
	if err := entry.store.SetIdentity(context.Background(), ""); err != nil {
		r.logger.Warn("個人リストの破棄に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// SignedIn はサインイン直後に個人リストを読み込んでおく。
// 失敗してもログイン自体は成功させ、次のアクセスで読み込み直す。
func (r *Registry) SignedIn(ctx context.Context, userID string) {
	if _, err := r.Get(ctx, userID); err != nil {
		r.logger.Warn("サインイン時の個人リスト読み込みに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// SignedOut はサインアウトしたユーザーのStoreを破棄する。
func (r *Registry) SignedOut(userID string) {
	r.Release(userID)
}

// Count は管理中のStore数を返す。テストおよびメトリクス用。
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// cleanupLoop はバックグラウンドで期限切れStoreを定期的に破棄する。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからIdleTTLを超えたStoreを破棄し、破棄した件数を返す。
func (r *Registry) evictIdle() int {
	now := r.now()

	r.mu.Lock()
	var idle []*registryEntry
	for userID, entry := range r.stores {
		if now.Sub(entry.lastAccess) > r.config.IdleTTL {
			idle = append(idle, entry)
			delete(r.stores, userID)
		}
	}
	r.mu.Unlock()

	for _, entry := range idle {
		r.clear(entry.store.UserID(), entry)
	}
	if len(idle) > 0 {
		r.logger.Info("未使用の個人リストを破棄しました", slog.Int("count", len(idle)))
	}
	return len(idle)
}
