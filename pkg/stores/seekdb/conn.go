package seekdb

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/theapemachine/bub-go/pkg/errors"
)

// validIdentifier guards everything that gets interpolated into SQL as an
// identifier. Tape names are data and go through placeholders instead.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

/*
Config locates the SeekDB/OceanBase service. SeekDB speaks the MySQL
protocol, so the stock MySQL driver is the whole integration.
*/
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string
}

/*
ConfigFromEnv builds the connection config from the environment, falling
back to the config file and then to the stock local OceanBase defaults.
The OCEANBASE_* names are shared with the wider deployment so a single
.env serves every component.
*/
func ConfigFromEnv() Config {
	v := viper.GetViper()

	port := 2881

	if raw := firstOf(os.Getenv("OCEANBASE_PORT"), v.GetString("database.port")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			port = parsed
		}
	}

	return Config{
		Host:     firstOf(os.Getenv("OCEANBASE_HOST"), v.GetString("database.host"), "127.0.0.1"),
		Port:     port,
		User:     firstOf(os.Getenv("OCEANBASE_USER"), v.GetString("database.user"), "root"),
		Password: firstOf(os.Getenv("OCEANBASE_PASSWORD"), v.GetString("database.password")),
		Database: firstOf(os.Getenv("OCEANBASE_DATABASE"), v.GetString("database.name"), "republic"),
		Table:    firstOf(os.Getenv("BUB_TAPE_TABLE"), v.GetString("database.table"), "bub_tape"),
	}
}

func firstOf(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}

/*
Validate rejects database and table names that cannot be safely used as SQL
identifiers.
*/
func (cfg Config) Validate() error {
	if !validIdentifier.MatchString(cfg.Database) {
		return fmt.Errorf("invalid database name: %q", cfg.Database)
	}

	if !validIdentifier.MatchString(cfg.Table) {
		return fmt.Errorf("invalid table name: %q", cfg.Table)
	}

	return nil
}

// dsn builds the MySQL DSN, optionally scoped to a database. The unscoped
// form is used before the database is known to exist.
func (cfg Config) dsn(database string) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, database,
	)
}

/*
Conn owns the gorm handles for the tape table. Bring-up is split in two so
the serve command can bound the wait: WaitReady dials until the server
answers, Setup then creates the database and table if they are missing.
*/
type Conn struct {
	cfg Config
	db  *gorm.DB
}

func NewConn(cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Conn{cfg: cfg}, nil
}

func (conn *Conn) open(database string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(conn.cfg.dsn(database)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

/*
WaitReady dials the server until it answers, up to attempts tries with a
fixed interval between them. The bounded loop is the startup contract:
callers abort with a non-zero exit when it returns an error.
*/
func (conn *Conn) WaitReady(ctx context.Context, attempts int, interval time.Duration) error {
	attempt := 0

	err := errors.RetryWithBackoff(
		errors.FixedRetryConfig(attempts, interval),
		func() error {
			attempt++

			if err := ctx.Err(); err != nil {
				return err
			}

			admin, err := conn.open("")
			if err != nil {
				log.Warn(
					"database not ready",
					"host", conn.cfg.Host,
					"port", conn.cfg.Port,
					"attempt", attempt,
					"error", err,
				)
				return err
			}

			closeDB(admin)
			return nil
		},
	)

	if err != nil {
		return fmt.Errorf("database %s:%d not reachable: %w", conn.cfg.Host, conn.cfg.Port, err)
	}

	return nil
}

/*
Setup ensures the database and tape table exist and leaves the connection
scoped to the database.
*/
func (conn *Conn) Setup(ctx context.Context) error {
	admin, err := conn.open("")
	if err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", conn.cfg.Host, conn.cfg.Port, err)
	}

	ddl := fmt.Sprintf(
		"CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4",
		conn.cfg.Database,
	)

	if err := admin.WithContext(ctx).Exec(ddl).Error; err != nil {
		closeDB(admin)
		return fmt.Errorf("failed to ensure database %s: %w", conn.cfg.Database, err)
	}

	closeDB(admin)

	if conn.db, err = conn.open(conn.cfg.Database); err != nil {
		return fmt.Errorf("failed to connect to database %s: %w", conn.cfg.Database, err)
	}

	return conn.ensureTable(ctx)
}

func (conn *Conn) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS `+"`%s`"+` (
    id BIGINT NOT NULL AUTO_INCREMENT,
    tape_name VARCHAR(255) NOT NULL,
    entry_id BIGINT NOT NULL,
    kind VARCHAR(64) NOT NULL,
    payload_json LONGTEXT NOT NULL,
    meta_json LONGTEXT NOT NULL,
    created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    PRIMARY KEY (id),
    UNIQUE KEY uniq_tape_entry (tape_name, entry_id),
    KEY idx_tape_name_created (tape_name, created_at)
) DEFAULT CHARSET = utf8mb4`, conn.cfg.Table)

	if err := conn.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", conn.cfg.Table, err)
	}

	return nil
}

// Close releases the underlying pool.
func (conn *Conn) Close() {
	if conn.db != nil {
		closeDB(conn.db)
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
