package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("DEV_DB_DRIVER", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 15*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "30 8 * * *", cfg.Scheduler.CycleWatchCron)
	assert.Equal(t, 7, cfg.Scheduler.CycleOverdueDays)
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
	assert.Same(t, cfg, AppConfig)
}

func TestLoad_ProdUsesProdPrefix(t *testing.T) {
	t.Setenv("APP_MODE", " prod ")
	t.Setenv("PROD_DB_DRIVER", "postgres")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("PROD_DB_PORT", "")
	t.Setenv("PROD_JWT_SECRET", "s3cret")
	t.Setenv("DEV_JWT_SECRET", "wrong")
	t.Setenv("ROUND_LOCK_TTL_SECONDS", "30")
	t.Setenv("CYCLE_OVERDUE_DAYS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 3, cfg.Scheduler.CycleOverdueDays)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("APP_MODE", "staging")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("APP_MODE", "dev")
	t.Setenv("DEV_DB_DRIVER", "oracle")
	_, err = Load()
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "n"}

	assert.Equal(t, "u:p@tcp(h:1)/n?charset=utf8mb4&parseTime=True&loc=Local", buildMySQLDSN(d))
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable TimeZone=UTC", buildPostgresDSN(d))

	_, err := openDialector(DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
