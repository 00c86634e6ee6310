// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package sqlstore

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/poiesic/docket/storage"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// Source carries what a dialect needs to build a connection pool.
type Source struct {
	URI      string
	User     string
	Password string
	// DialTimeout bounds establishing a single connection.
	DialTimeout time.Duration
}

// Dialect captures the SQL differences between supported databases.
// Every table has two columns: doc_key (primary key, compared bytewise)
// and doc_value (the JSON document).
type Dialect struct {
	Name string

	// Open builds an unconnected pool.
	Open func(src Source) (*sql.DB, error)

	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// Quote quotes a table name.
	Quote func(name string) string

	// CreateTable returns the DDL creating table if it does not exist.
	CreateTable func(table string) string

	// Upsert returns an insert-or-replace statement taking key and value.
	Upsert func(table string) string

	// OrderKey is the ORDER BY expression giving bytewise key order.
	OrderKey string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func backtick(name string) string { return "`" + name + "`" }

func doubleQuote(name string) string { return `"` + name + `"` }

// MariaDB speaks the MySQL wire protocol. uri is either a driver DSN
// ("user:pass@tcp(host:3306)/db") or a URL ("mysql://host:3306/db",
// optionally prefixed with "jdbc:").
var MariaDB = Dialect{
	Name:        "mariadb",
	Open:        openMySQL,
	Placeholder: questionMark,
	Quote:       backtick,
	CreateTable: func(table string) string {
		return "CREATE TABLE IF NOT EXISTS " + backtick(table) + " (" +
			"doc_key VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL PRIMARY KEY, " +
			"doc_value LONGTEXT NOT NULL)"
	},
	Upsert: func(table string) string {
		return "INSERT INTO " + backtick(table) + " (doc_key, doc_value) VALUES (?, ?) " +
			"ON DUPLICATE KEY UPDATE doc_value = VALUES(doc_value)"
	},
	OrderKey: "doc_key",
}

// Postgres uses pgx through its database/sql adapter. uri is any form
// pgx.ParseConfig accepts, optionally prefixed with "jdbc:".
var Postgres = Dialect{
	Name:        "postgres",
	Open:        openPostgres,
	Placeholder: dollar,
	Quote:       doubleQuote,
	CreateTable: func(table string) string {
		return "CREATE TABLE IF NOT EXISTS " + doubleQuote(table) + " (" +
			"doc_key TEXT PRIMARY KEY, doc_value TEXT NOT NULL)"
	},
	Upsert: func(table string) string {
		return "INSERT INTO " + doubleQuote(table) + " (doc_key, doc_value) VALUES ($1, $2) " +
			"ON CONFLICT (doc_key) DO UPDATE SET doc_value = EXCLUDED.doc_value"
	},
	OrderKey: `doc_key COLLATE "C"`,
}

// SQLite uses the pure-Go modernc driver. uri is a file name or a
// "file:" URI.
var SQLite = Dialect{
	Name:        "sqlite",
	Open:        openSQLite,
	Placeholder: questionMark,
	Quote:       doubleQuote,
	CreateTable: func(table string) string {
		return "CREATE TABLE IF NOT EXISTS " + doubleQuote(table) + " (" +
			"doc_key TEXT PRIMARY KEY, doc_value TEXT NOT NULL)"
	},
	Upsert: func(table string) string {
		return "INSERT INTO " + doubleQuote(table) + " (doc_key, doc_value) VALUES (?, ?) " +
			"ON CONFLICT (doc_key) DO UPDATE SET doc_value = excluded.doc_value"
	},
	OrderKey: "doc_key",
}

func openMySQL(src Source) (*sql.DB, error) {
	cfg, err := mysqlConfig(src.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: mariadb: %w", storage.ErrConfiguration, err)
	}
	if src.User != "" {
		cfg.User = src.User
	}
	if src.Password != "" {
		cfg.Passwd = src.Password
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = src.DialTimeout
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: mariadb: %w", storage.ErrConfiguration, err)
	}
	return sql.OpenDB(connector), nil
}

func mysqlConfig(uri string) (*mysql.Config, error) {
	uri = strings.TrimPrefix(uri, "jdbc:")
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "mysql" && u.Scheme != "mariadb") {
		return mysql.ParseDSN(uri)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	for k, v := range u.Query() {
		if len(v) == 0 {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[k] = v[0]
	}
	return cfg, nil
}

func openPostgres(src Source) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(strings.TrimPrefix(src.URI, "jdbc:"))
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: %w", storage.ErrConfiguration, err)
	}
	if src.User != "" {
		cfg.User = src.User
	}
	if src.Password != "" {
		cfg.Password = src.Password
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = src.DialTimeout
	}
	return stdlib.OpenDB(*cfg), nil
}

func openSQLite(src Source) (*sql.DB, error) {
	if strings.TrimSpace(src.URI) == "" {
		return nil, fmt.Errorf("%w: sqlite: empty uri", storage.ErrConfiguration)
	}
	dsn := src.URI
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=case_sensitive_like(1)"
	}
	return sql.Open("sqlite", dsn)
}

// likePrefix escapes prefix for a LIKE pattern using '!' as the escape
// character, which needs no quoting in any supported dialect.
func likePrefix(prefix string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(prefix) + "%"
}
