package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"osgb/internal/database"
	"osgb/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "osgb.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newConcurrentTestDB opens a pooled WAL database so goroutines run on their
// own connections. Write transactions begin immediately and wait out the busy
// timeout instead of failing with SQLITE_BUSY.
func newConcurrentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "osgb.db") + "?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createTenant(t *testing.T, db *gorm.DB, code string) AuthContext {
	t.Helper()
	tenant := &models.Tenant{Name: code, Code: code, Status: models.TenantStatusActive}
	require.NoError(t, db.Create(tenant).Error)
	return AuthContext{TenantID: tenant.ID, Role: models.UserRoleAdmin}
}

func createPersonnel(t *testing.T, db *gorm.DB, auth AuthContext, role models.PersonnelRole, minutes int) uint {
	t.Helper()
	svc := NewPersonnelService(db, DefaultMinuteCeiling)
	account, err := svc.Create(context.Background(), auth, role, &models.CreatePersonnelRequest{
		FirstName:       "Ayse",
		LastName:        "Yilmaz",
		AssignedMinutes: &minutes,
	})
	require.NoError(t, err)
	return account.Account().ID
}

func createExpert(t *testing.T, db *gorm.DB, auth AuthContext, class models.ExpertClass, minutes int) uint {
	t.Helper()
	svc := NewPersonnelService(db, DefaultMinuteCeiling)
	account, err := svc.Create(context.Background(), auth, models.RoleExpert, &models.CreatePersonnelRequest{
		FirstName:       "Mehmet",
		LastName:        "Demir",
		AssignedMinutes: &minutes,
		ExpertiseClass:  class,
	})
	require.NoError(t, err)
	return account.Account().ID
}

func minutesOf(t *testing.T, db *gorm.DB, role models.PersonnelRole, id uint) int {
	t.Helper()
	var row models.Personnel
	require.NoError(t, db.Table(role.Table()).Where("id = ?", id).First(&row).Error)
	return row.AssignedMinutes
}

func uintPtr(v uint) *uint { return &v }

func statusPtr(s models.ApprovalStatus) *models.ApprovalStatus { return &s }

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []VisitEvent
}

func (p *capturePublisher) PublishVisitChanged(_ context.Context, event VisitEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}
