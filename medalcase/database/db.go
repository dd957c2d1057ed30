package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"log/slog"

	"github.com/uptrace/bun"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/logger"
)

const (
	defaultConnTimeout   = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
	schemaVersion        = 1 // bump when schema changes
)

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	var conn net.Conn
	var err error

	tryDial := func() (net.Conn, error) {
		addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
		if c, e := net.DialTimeout("tcp4", addr, defaultConnTimeout); e == nil {
			return c, nil
		}
		return net.DialTimeout("tcp6", addr, defaultConnTimeout)
	}

	for i := 0; i < defaultMaxRetries; i++ {
		conn, err = tryDial()
		if err == nil {
			break
		}
		time.Sleep(defaultRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
	}
	defer conn.Close()

	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{pool: pool, bunDB: newBunDB(pool)}, nil
}

func buildConnString(cfg DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func (db *DB) GetPool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func newBunDB(pool *pgxpool.Pool) *bun.DB {
	sslMode := os.Getenv("PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pool.Config().ConnConfig.User,
		pool.Config().ConnConfig.Password,
		pool.Config().ConnConfig.Host,
		pool.Config().ConnConfig.Port,
		pool.Config().ConnConfig.Database,
		sslMode,
	)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (db *DB) ExecWithLog(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	result, err := db.pool.Exec(ctx, sql, args...)
	logger.LogQuery(sql, time.Since(start), err)
	return result, err
}

func (db *DB) QueryWithLog(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	start := time.Now()
	rows, err := db.pool.Query(ctx, sql, args...)
	logger.LogQuery(sql, time.Since(start), err)
	return rows, err
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// Ping verifies both database connections are working
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgxpool ping failed: %w", err)
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}
	return nil
}

// InitializeSchema creates all required database tables and indexes
func (db *DB) InitializeSchema(ctx context.Context) error {
	// Create tables in dependency order
	tables := []interface{}{
		(*models.Profile)(nil),
		(*models.Title)(nil),
		(*models.Achievement)(nil),
		(*models.AchievementProgress)(nil),
		(*models.AchievementGrant)(nil),
		(*models.TitleGrant)(nil),
		(*models.GamificationSummary)(nil),
		(*models.Notification)(nil),
		(*models.RewardSlot)(nil),
		(*models.SlotClaim)(nil),
		(*models.ProfileGameStat)(nil),
		(*models.StageCompletion)(nil),
	}

	for _, model := range tables {
		query := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists()

		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		// Uniqueness constraints carrying the idempotence guarantees
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_grants_profile_achievement ON achievement_grants(profile_id, achievement_id);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_profile_achievement ON achievement_progress(profile_id, achievement_id);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_slot_claims_slot_profile ON slot_claims(slot_id, profile_id);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_stage_completions_unique ON stage_completions(profile_id, series, tier, stage_key);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_game_stats_profile_game ON profile_game_stats(profile_id, game_id);",
		// Lookup indexes
		"CREATE INDEX IF NOT EXISTS idx_achievements_series_tier ON achievements(series, tier);",
		"CREATE INDEX IF NOT EXISTS idx_achievements_criteria_type ON achievements(criteria_type);",
		"CREATE INDEX IF NOT EXISTS idx_grants_profile ON achievement_grants(profile_id);",
		"CREATE INDEX IF NOT EXISTS idx_grants_achievement ON achievement_grants(achievement_id);",
		"CREATE INDEX IF NOT EXISTS idx_progress_profile ON achievement_progress(profile_id);",
		"CREATE INDEX IF NOT EXISTS idx_title_grants_profile ON title_grants(profile_id);",
		"CREATE INDEX IF NOT EXISTS idx_title_grants_source ON title_grants(source_type, source_id);",
		"CREATE INDEX IF NOT EXISTS idx_notifications_profile ON notifications(profile_id, read);",
		"CREATE INDEX IF NOT EXISTS idx_notifications_source ON notifications(source_type, source_id);",
		"CREATE INDEX IF NOT EXISTS idx_game_stats_profile ON profile_game_stats(profile_id);",
		"CREATE INDEX IF NOT EXISTS idx_stage_completions_profile ON stage_completions(profile_id, series, tier);",
	}

	for _, idx := range indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := db.InitializeAchievementData(ctx); err != nil {
		return fmt.Errorf("failed to initialize achievement data: %w", err)
	}

	logger.LogSystem("Schema initialized", slog.Int("schema_version", schemaVersion))
	return nil
}

// InitializeAchievementData upserts the default achievement definitions.
// required_value is derived from the criteria target on every upsert so
// the denormalized copy never drifts from the configured parameters.
func (db *DB) InitializeAchievementData(ctx context.Context) error {
	type achievementDef struct {
		Slug         string
		Name         string
		Description  string
		Kind         string
		Series       string
		Tier         int
		StageCount   int
		CriteriaType string
		Criteria     map[string]interface{}
	}

	defs := []achievementDef{
		// Trophy hunter badge series, bronze through platinum
		{"hunter_bronze", "Trophy Hunter I", "Earn 100 trophies", models.KindBadge, "hunter", 1, 10, models.CriteriaTotalTrophies, map[string]interface{}{"target": 100}},
		{"hunter_silver", "Trophy Hunter II", "Earn 500 trophies", models.KindBadge, "hunter", 2, 10, models.CriteriaTotalTrophies, map[string]interface{}{"target": 500}},
		{"hunter_gold", "Trophy Hunter III", "Earn 2000 trophies", models.KindBadge, "hunter", 3, 10, models.CriteriaTotalTrophies, map[string]interface{}{"target": 2000}},
		{"hunter_platinum", "Trophy Hunter IV", "Earn 10000 trophies", models.KindBadge, "hunter", 4, 10, models.CriteriaTotalTrophies, map[string]interface{}{"target": 10000}},

		// Completionist badge series by games fully completed
		{"completionist_bronze", "Completionist I", "Fully complete 1 game", models.KindBadge, "completionist", 1, 5, models.CriteriaGamesCompleted, map[string]interface{}{"target": 1}},
		{"completionist_silver", "Completionist II", "Fully complete 5 games", models.KindBadge, "completionist", 2, 5, models.CriteriaGamesCompleted, map[string]interface{}{"target": 5}},
		{"completionist_gold", "Completionist III", "Fully complete 25 games", models.KindBadge, "completionist", 3, 5, models.CriteriaGamesCompleted, map[string]interface{}{"target": 25}},
		{"completionist_platinum", "Completionist IV", "Fully complete 100 games", models.KindBadge, "completionist", 4, 5, models.CriteriaGamesCompleted, map[string]interface{}{"target": 100}},

		// One-off milestones
		{"first_platinum", "First Platinum", "Earn your first platinum", models.KindMilestone, "", 0, 0, models.CriteriaPlatinumCount, map[string]interface{}{"target": 1}},
		{"ten_platinums", "Platinum Club", "Earn 10 platinums", models.KindMilestone, "", 0, 0, models.CriteriaPlatinumCount, map[string]interface{}{"target": 10}},
		{"century", "Century", "Complete 100 stages overall", models.KindMilestone, "", 0, 0, models.CriteriaStageCount, map[string]interface{}{"target": 100}},
	}

	// One milestone per calendar month, generated like their handlers.
	months := []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
	for i, name := range months {
		defs = append(defs, achievementDef{
			Slug:         fmt.Sprintf("month_%d", i+1),
			Name:         fmt.Sprintf("%s Grind", name),
			Description:  fmt.Sprintf("Complete a game in %s", name),
			Kind:         models.KindMilestone,
			CriteriaType: fmt.Sprintf("%s_%d", models.CriteriaMonthComplete, i+1),
			Criteria:     map[string]interface{}{"target": 1, "month": i + 1},
		})
	}

	insertSQL := `
		INSERT INTO achievements (
			slug, name, description, kind, series, tier, stage_count,
			criteria_type, criteria, required_value,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9::jsonb, $10,
			CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
		) ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			kind = EXCLUDED.kind,
			series = EXCLUDED.series,
			tier = EXCLUDED.tier,
			stage_count = EXCLUDED.stage_count,
			criteria_type = EXCLUDED.criteria_type,
			criteria = EXCLUDED.criteria,
			required_value = EXCLUDED.required_value,
			updated_at = CURRENT_TIMESTAMP;
	`

	for _, d := range defs {
		criteriaBytes, err := json.Marshal(d.Criteria)
		if err != nil {
			return fmt.Errorf("failed to marshal criteria for %s: %w", d.Slug, err)
		}

		required := 0
		if v, ok := d.Criteria["target"].(int); ok {
			required = v
		}

		if _, err := db.ExecWithLog(ctx, insertSQL,
			d.Slug, d.Name, d.Description, d.Kind, d.Series, d.Tier, d.StageCount,
			d.CriteriaType, string(criteriaBytes), required,
		); err != nil {
			return fmt.Errorf("failed to upsert achievement %s: %w", d.Slug, err)
		}
	}

	logger.LogSystem("Achievement definitions initialized", slog.Int("count", len(defs)))
	return nil
}
