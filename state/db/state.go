// Package db is the SQLite global state backend.
package db

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/types"
)

const (
	defaultDBPath = "./counter.db"

	// ParamDBPath names the database file parameter.
	ParamDBPath = "db_path"
)

// DBStoredValue is a row of global state.
type DBStoredValue struct {
	Key       string    `gorm:"column:state_key;primaryKey;size:128"`
	Kind      string    `gorm:"column:kind;not null;index;size:32"`
	Value     []byte    `gorm:"column:value;type:blob;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for DBStoredValue
func (DBStoredValue) TableName() string {
	return "stored_values"
}

// DBCommit records one applied effect set.
type DBCommit struct {
	gorm.Model
	Writes int    `gorm:"column:writes;not null"`
	Digest string `gorm:"column:digest;not null;index;size:64"`
}

// TableName specifies the table name for DBCommit
func (DBCommit) TableName() string {
	return "commits"
}

func init() {
	if err := state.Register(state.DBType, New); err != nil {
		panic(err)
	}
}

// State keeps global state in SQLite through gorm.
type State struct {
	db *gorm.DB
}

// New opens the database named by the db_path parameter, creating it if needed.
func New(params map[string]any) (state.GlobalState, error) {
	dbPath := defaultDBPath
	if path, ok := params[ParamDBPath].(string); ok && path != "" {
		dbPath = path
	}
	return Open(dbPath)
}

func Open(dbPath string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create db directory")
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.AutoMigrate(&DBStoredValue{}, &DBCommit{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &State{db: db}, nil
}

func (s *State) Get(ctx context.Context, key types.Key) (state.StoredValue, error) {
	var row DBStoredValue
	err := s.db.WithContext(ctx).Where("state_key = ?", key.StateID()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return state.StoredValue{}, state.ErrNotFound
	}
	if err != nil {
		return state.StoredValue{}, errors.Wrapf(err, "failed to get %s", key)
	}
	return state.Unmarshal(row.Value)
}

func (s *State) Apply(ctx context.Context, effects state.Effects) error {
	for _, w := range effects {
		if w.Value.Kind() == "" {
			return errors.Wrapf(state.ErrEmptyValue, "key %s", w.Key)
		}
	}
	digest, err := effects.Digest()
	if err != nil {
		return err
	}
	rows := make([]DBStoredValue, 0, len(effects))
	for _, w := range effects {
		value, err := w.Value.Marshal()
		if err != nil {
			return errors.Wrapf(err, "key %s", w.Key)
		}
		rows = append(rows, DBStoredValue{
			Key:   w.Key.StateID(),
			Kind:  string(w.Value.Kind()),
			Value: value,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "state_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"kind", "value", "updated_at"}),
			}).Create(&rows).Error
			if err != nil {
				return errors.Wrap(err, "failed to write stored values")
			}
		}
		commit := DBCommit{Writes: len(rows), Digest: digest.String()}
		if err := tx.Create(&commit).Error; err != nil {
			return errors.Wrap(err, "failed to record commit")
		}
		return nil
	})
}

// Commits returns the number of applied effect sets.
func (s *State) Commits(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&DBCommit{}).Count(&n).Error
	return n, err
}

func (s *State) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
