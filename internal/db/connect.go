package db

import (
	"fmt"
	"net"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/zulandar/taskyard/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds a DSN for the configured MySQL database. An empty name
// selects no database, used for CREATE DATABASE operations.
func MySQLDSN(cfg config.DatabaseConfig, name string) string {
	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = name
	mc.ParseTime = true
	return mc.FormatDSN()
}

// PostgresDSN builds a keyword/value DSN for the configured Postgres database.
func PostgresDSN(cfg config.DatabaseConfig, name string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable", cfg.Host, cfg.Port, cfg.User, name)
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	return dsn
}

// Connect opens a GORM connection for the configured driver.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return OpenSQLite(cfg.Path)
	case "mysql":
		return open(mysql.Open(MySQLDSN(cfg, cfg.Name)), cfg.Name)
	case "postgres":
		return open(postgres.Open(PostgresDSN(cfg, cfg.Name)), cfg.Name)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// OpenSQLite opens a SQLite database at path. SQLite allows one writer, so
// the pool is limited to a single connection; this also keeps in-memory
// databases shared across queries.
func OpenSQLite(path string) (*gorm.DB, error) {
	gdb, err := open(sqlite.Open(path), path)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sqlite pool for %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("db: sqlite pragma for %s: %w", path, err)
	}
	return gdb, nil
}

func open(dialector gorm.Dialector, name string) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", name, err)
	}
	return gdb, nil
}

// CreateDatabase creates the configured database on a MySQL or Postgres
// server if it doesn't already exist. SQLite creates its file on connect.
func CreateDatabase(cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case "mysql":
		admin, err := open(mysql.Open(MySQLDSN(cfg, "")), cfg.Host)
		if err != nil {
			return fmt.Errorf("db: admin connect: %w", err)
		}
		sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Name)
		if err := admin.Exec(sql).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", cfg.Name, err)
		}
	case "postgres":
		admin, err := open(postgres.Open(PostgresDSN(cfg, "postgres")), cfg.Host)
		if err != nil {
			return fmt.Errorf("db: admin connect: %w", err)
		}
		var count int64
		if err := admin.Raw("SELECT count(*) FROM pg_database WHERE datname = ?", cfg.Name).Scan(&count).Error; err != nil {
			return fmt.Errorf("db: check database %s: %w", cfg.Name, err)
		}
		if count == 0 {
			sql := fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.Name)
			if err := admin.Exec(sql).Error; err != nil {
				return fmt.Errorf("db: create database %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}
