package medalcase

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/bot"

	"github.com/medalcase/medalcase/medalcase/criteria"
	"github.com/medalcase/medalcase/medalcase/database"
	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/database/repositories"
	"github.com/medalcase/medalcase/medalcase/events"
	"github.com/medalcase/medalcase/medalcase/gamification"
	"github.com/medalcase/medalcase/medalcase/logger"
	"github.com/medalcase/medalcase/medalcase/notify"
	"github.com/medalcase/medalcase/medalcase/services"
)

const memoryStoreReapInterval = time.Minute

// App bundles the wired-up achievement core.
type App struct {
	Config *Config
	DB     *database.DB
	Client bot.Client

	Bus        *events.Bus
	Registry   *criteria.Registry
	Aggregator *gamification.Aggregator
	Queue      *notify.Queue

	AwardService *services.AwardService
	ClaimService *services.ClaimService
	AuditService *services.AuditService

	memStore *notify.MemoryStore
	redStore *notify.RedisStore
}

// NewApp wires repositories, the criteria registry, the aggregator,
// the notification queue and the services together. client may be nil
// when no Discord integration is configured.
func NewApp(cfg *Config, db *database.DB, client bot.Client) (*App, error) {
	bunDB := db.BunDB()

	achievementRepo := repositories.NewAchievementRepository(bunDB)
	progressRepo := repositories.NewProgressRepository(bunDB)
	grantRepo := repositories.NewGrantRepository(bunDB)
	titleRepo := repositories.NewTitleRepository(bunDB)
	summaryRepo := repositories.NewSummaryRepository(bunDB)
	notificationRepo := repositories.NewNotificationRepository(bunDB)
	slotRepo := repositories.NewSlotRepository(bunDB)
	profileRepo := repositories.NewProfileRepository(bunDB)
	statsRepo := repositories.NewStatsRepository(bunDB)

	registry := criteria.NewRegistry()
	criteria.RegisterBuiltins(registry, statsRepo)

	weights := cfg.Gamification.Weights()
	bonus := cfg.Gamification.CompletionBonus
	if bonus == 0 {
		bonus = DefaultCompletionBonus
	}

	aggregator := gamification.NewAggregator(
		progressRepo, grantRepo, summaryRepo,
		weights, bonus, cfg.Gamification.RecomputeWorkers,
	)

	app := &App{
		Config:     cfg,
		DB:         db,
		Client:     client,
		Registry:   registry,
		Aggregator: aggregator,
		Bus:        events.NewBus(),
	}

	var store notify.Store
	if cfg.Redis.URL != "" {
		redStore, err := notify.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		app.redStore = redStore
		store = redStore
		logger.LogNotify("Notification queue backed by redis")
	} else {
		memStore := notify.NewMemoryStore()
		memStore.StartCleanupRoutine(memoryStoreReapInterval)
		app.memStore = memStore
		store = memStore
		logger.LogNotify("Notification queue backed by in-memory store")
	}

	dispatcher := services.NewNotificationDispatcher(notificationRepo, profileRepo, client, cfg.Discord.SendDMs)
	app.Queue = notify.NewQueue(
		store,
		achievementLoader{repo: achievementRepo},
		dispatcher,
		cfg.Notify.SingleTTL(),
		cfg.Notify.ListTTL,
	)

	var roles services.RoleGranter
	if client != nil && cfg.Discord.GuildID != 0 {
		roles = services.NewRoleService(client, cfg.Discord.GuildID)
	}

	tx := services.NewTxRunner(bunDB)

	app.AwardService = services.NewAwardService(
		achievementRepo, progressRepo, grantRepo, titleRepo, profileRepo,
		registry, aggregator, app.Queue, app.Bus, roles, tx,
	)
	app.ClaimService = services.NewClaimService(slotRepo, tx)
	app.AuditService = services.NewAuditService(
		achievementRepo, progressRepo, grantRepo, titleRepo, notificationRepo,
		registry, aggregator, app.Bus, tx, cfg.Audit.GracePeriod,
	)

	// Summary maintenance reacts to domain events rather than being
	// called from the write path directly.
	markDirty := func(ctx context.Context, ev events.Event) {
		aggregator.MarkDirty(ctx, ev.ProfileID)
	}
	app.Bus.Subscribe(events.ProgressUpserted, markDirty)
	app.Bus.Subscribe(events.GrantCreated, markDirty)
	app.Bus.Subscribe(events.GrantDeleted, markDirty)

	return app, nil
}

func (a *App) Close() {
	if a.memStore != nil {
		a.memStore.Stop()
	}
	if a.redStore != nil {
		_ = a.redStore.Close()
	}
	if a.Client != nil {
		a.Client.Close(context.Background())
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// achievementLoader adapts the achievement repository to the queue's
// flush-time loader.
type achievementLoader struct {
	repo repositories.AchievementRepository
}

func (l achievementLoader) Achievement(ctx context.Context, id int64) (*models.Achievement, error) {
	return l.repo.GetByID(ctx, id)
}
