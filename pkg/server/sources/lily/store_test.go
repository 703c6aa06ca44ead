package lily

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestGormStore_Query(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=lily dbname=lily sslmode=disable"}),
		&gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	store := NewGormStore(db)
	defer store.Close()

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return store.query(tx, "f01234", 10, 20).Find(&[]ParsedMessage{})
	})

	assert.Contains(t, sql, `"lily"."parsed_messages"`)
	assert.Contains(t, sql, `"to" = 'f01234'`)
	assert.Contains(t, sql, `method = 'Send'`)
	assert.Contains(t, sql, `height BETWEEN 10 AND 20`)
	assert.Contains(t, sql, `value > 0`)
	assert.Contains(t, sql, `ORDER BY height`)
}

func TestDBOptions_DSN(t *testing.T) {
	tests := []struct {
		name string
		opts DBOptions
		want string
	}{
		{"explicit", DBOptions{DSN: "postgres://u@db/lily", Host: "ignored"}, "postgres://u@db/lily"},
		{"defaults", DBOptions{Database: "lily"}, "postgres://localhost:5432/lily?sslmode=disable"},
		{"credentials", DBOptions{Host: "db", Port: 6543, User: "u", Password: "p", Database: "lily", SSLMode: "require"}, "postgres://u:p@db:6543/lily?sslmode=require"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.dsn())
		})
	}
}

func TestDBOptionsFromConfig(t *testing.T) {
	opts := DBOptionsFromConfig(map[string]interface{}{"db_host": "db", "db_port": 6543, "db_name": "lily"})
	assert.True(t, opts.configured())
	assert.Equal(t, "postgres://db:6543/lily?sslmode=disable", opts.dsn())

	assert.False(t, DBOptionsFromConfig(map[string]interface{}{}).configured())
}
