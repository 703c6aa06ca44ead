package lily

import (
	"context"
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"

	methodSend = "Send"
)

// ParsedMessage is a row of lily.parsed_messages.
type ParsedMessage struct {
	Cid    string `gorm:"column:cid"`
	Height int64  `gorm:"column:height"`
	From   string `gorm:"column:from"`
	To     string `gorm:"column:to"`
	Value  string `gorm:"column:value"`
	Method string `gorm:"column:method"`
}

// TableName maps the model to the Lily schema.
func (ParsedMessage) TableName() string { return "lily.parsed_messages" }

// MessageStore returns the positive-value Send messages received by an address
// between two heights, both inclusive.
type MessageStore interface {
	Messages(ctx context.Context, to string, start, end int64) ([]ParsedMessage, error)
	Close() error
}

// DBOptions selects the database. DSN wins over the individual fields.
type DBOptions struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DBOptionsFromConfig reads database_url, or db_host, db_port, db_user,
// db_password, db_name and db_sslmode.
func DBOptionsFromConfig(config map[string]interface{}) DBOptions {
	return DBOptions{
		DSN:      sources.GetString(config, "database_url", ""),
		Host:     sources.GetString(config, "db_host", ""),
		Port:     sources.GetInt(config, "db_port", 0),
		User:     sources.GetString(config, "db_user", ""),
		Password: sources.GetString(config, "db_password", ""),
		Database: sources.GetString(config, "db_name", ""),
		SSLMode:  sources.GetString(config, "db_sslmode", ""),
	}
}

func (o DBOptions) configured() bool {
	return o.DSN != "" || o.Host != "" || o.Database != ""
}

func (o DBOptions) dsn() string {
	if o.DSN != "" {
		return o.DSN
	}

	host := o.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := o.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", host, port),
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	if o.User != "" {
		if o.Password != "" {
			u.User = url.UserPassword(o.User, o.Password)
		} else {
			u.User = url.User(o.User)
		}
	}
	if o.Database != "" {
		u.Path = "/" + o.Database
	}
	return u.String()
}

// GormStore is a MessageStore backed by PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// OpenStore prepares a connection pool. The first query opens the connection,
// so the adapter starts even when the database is down.
func OpenStore(opts DBOptions) (*GormStore, error) {
	if !opts.configured() {
		return nil, sources.ErrDatabaseURLRequired
	}
	db, err := gorm.Open(postgres.Open(opts.dsn()), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	}
	return &GormStore{db: db}, nil
}

// NewGormStore wraps an existing handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) query(tx *gorm.DB, to string, start, end int64) *gorm.DB {
	return tx.Model(&ParsedMessage{}).
		Select("cid", "height", "from", "to", "value", "method").
		Where(`"to" = ?`, to).
		Where("method = ?", methodSend).
		Where("height BETWEEN ? AND ?", start, end).
		Where("value > 0").
		Order("height").
		Order("cid")
}

// Messages implements MessageStore.
func (s *GormStore) Messages(ctx context.Context, to string, start, end int64) ([]ParsedMessage, error) {
	var rows []ParsedMessage
	if err := s.query(s.db.WithContext(ctx), to, start, end).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	}
	return rows, nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
