package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	defaultMySQLHost = "127.0.0.1"
	defaultMySQLPort = 3306
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig())
}

// buildMySQLDSN has the driver parse address and options, then sets the
// credentials on the parsed config. Timestamps are read back as UTC.
func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := mysqldriver.ParseDSN(cfg.DSN); err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		return cfg.DSN, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = defaultMySQLHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	query := url.Values{}
	query.Set("parseTime", "true")
	query.Set("charset", "utf8mb4")
	for key, value := range cfg.Options {
		query.Set(key, value)
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	parsed, err := mysqldriver.ParseDSN(fmt.Sprintf("tcp(%s)/%s?%s", address, url.PathEscape(cfg.Name), query.Encode()))
	if err != nil {
		return "", fmt.Errorf("mysql configuration: %w", err)
	}
	parsed.User = cfg.User
	parsed.Passwd = cfg.Password
	return parsed.FormatDSN(), nil
}
