// Package testutil builds isolated stores for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"shelfmate/internal/database"
	"shelfmate/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// NewDB opens a private in-memory SQLite database with the full schema. The
// pool holds a single connection so concurrent tests serialize the way row
// locks would on MySQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// NewRedis starts a miniredis server stopped at cleanup.
func NewRedis(t testing.TB) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr
}

// MemberOpts customizes a seeded member. Zero values get defaults.
type MemberOpts struct {
	Nickname    string
	Gender      string
	Broad, Fine string
	Contact     string
	FreeReveals *int
}

// SeedMember inserts a live member with a unique auth identity.
func SeedMember(t testing.TB, db *gorm.DB, o MemberOpts) *models.Member {
	t.Helper()
	n := seq.Add(1)
	if o.Nickname == "" {
		o.Nickname = fmt.Sprintf("reader%d", n)
	}
	if o.Gender == "" {
		o.Gender = "female"
	}
	if o.Broad == "" {
		o.Broad = "서울"
	}
	if o.Fine == "" {
		o.Fine = "마포구"
	}
	if o.Contact == "" {
		o.Contact = fmt.Sprintf("kakao:%s", o.Nickname)
	}
	auth := fmt.Sprintf("auth-%d", n)
	dob := time.Date(1994, 5, 20, 0, 0, 0, 0, time.UTC)
	m := &models.Member{
		AuthUserID:       &auth,
		LegacyAuthUserID: auth,
		Nickname:         o.Nickname,
		DateOfBirth:      &dob,
		Gender:           o.Gender,
		RegionBroad:      o.Broad,
		RegionFine:       o.Fine,
		FavoriteBook:     "토지",
		FavoriteAuthor:   "박경리",
		Contact:          o.Contact,
		FreeRevealsCount: 1,
	}
	if o.FreeReveals != nil {
		m.FreeRevealsCount = *o.FreeReveals
	}
	require.NoError(t, db.Create(m).Error)
	if o.FreeReveals != nil && *o.FreeReveals == 0 {
		// default:1 makes gorm skip a zero value on insert.
		require.NoError(t, db.Model(m).UpdateColumn("free_reveals_count", 0).Error)
		m.FreeRevealsCount = 0
	}
	return m
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }
