package services

import (
	"context"
	"testing"
	"time"

	"osgb/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func boolPtr(b bool) *bool { return &b }

func TestValidMonth(t *testing.T) {
	for month, want := range map[string]bool{
		"2023-07": true,
		"1999-12": true,
		"2023-7":  false,
		"2023-13": false,
		"07-2023": false,
		"":        false,
	} {
		assert.Equal(t, want, ValidMonth(month), month)
	}
}

func TestRecordVisitUpsertsSingleRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	expertID := createExpert(t, db, auth, models.ExpertClassA, 1000)
	workplace, err := NewWorkplaceService(db, nil).Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Plant", HazardTier: models.HazardLow, Headcount: 4, ExpertID: uintPtr(expertID),
	})
	require.NoError(t, err)
	workplaceID := workplace.Workplace.ID

	publisher := &capturePublisher{}
	svc := NewVisitService(db, publisher)

	first, err := svc.RecordVisit(ctx, auth, &models.RecordVisitRequest{
		ExpertID: expertID, WorkplaceID: workplaceID, Month: "2023-07", Visited: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, first.Visited)
	assert.NotNil(t, first.VisitDate)

	second, err := svc.RecordVisit(ctx, auth, &models.RecordVisitRequest{
		ExpertID: expertID, WorkplaceID: workplaceID, Month: "2023-07", Visited: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Visited)

	var count int64
	require.NoError(t, db.Model(&models.VisitRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	summary, err := svc.VisitSummary(ctx, auth, expertID)
	require.NoError(t, err)
	require.Contains(t, summary, workplaceID)
	assert.Equal(t, models.MonthVisit{Visited: false, Month: "2023-07"}, summary[workplaceID].Visits["2023-07"])

	assert.Equal(t, []string{VisitCreated, VisitUpdated}, publisher.actions())

	// visits never touch quota
	assert.Equal(t, 1000, minutesOf(t, db, models.RoleExpert, expertID))
}

func TestRecordVisitValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	authA := createTenant(t, db, "tenant-a")
	authB := createTenant(t, db, "tenant-b")
	expertA := createExpert(t, db, authA, models.ExpertClassA, 1000)
	expertB := createExpert(t, db, authB, models.ExpertClassA, 1000)
	workplace, err := NewWorkplaceService(db, nil).Create(ctx, authA, &models.CreateWorkplaceRequest{
		Name: "Plant", HazardTier: models.HazardLow, Headcount: 4,
	})
	require.NoError(t, err)

	publisher := &capturePublisher{}
	svc := NewVisitService(db, publisher)

	_, err = svc.RecordVisit(ctx, authA, &models.RecordVisitRequest{
		ExpertID: expertA, WorkplaceID: workplace.Workplace.ID, Month: "2023/07", Visited: boolPtr(true),
	})
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = svc.RecordVisit(ctx, authA, &models.RecordVisitRequest{
		ExpertID: expertB, WorkplaceID: workplace.Workplace.ID, Month: "2023-07", Visited: boolPtr(true),
	})
	assert.Equal(t, KindReferenceViolation, KindOf(err))

	_, err = svc.RecordVisit(ctx, authB, &models.RecordVisitRequest{
		ExpertID: expertB, WorkplaceID: workplace.Workplace.ID, Month: "2023-07", Visited: boolPtr(true),
	})
	assert.Equal(t, KindReferenceViolation, KindOf(err))

	// another tenant's expert has no visits here
	summary, err := svc.VisitSummary(ctx, authA, expertB)
	require.NoError(t, err)
	assert.Empty(t, summary)

	assert.Empty(t, publisher.actions())
}

func TestVisitSummarySurvivesExpertDeletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	expertID := createExpert(t, db, auth, models.ExpertClassA, 1000)
	workplace, err := NewWorkplaceService(db, nil).Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Plant", HazardTier: models.HazardLow, Headcount: 4, ExpertID: uintPtr(expertID),
	})
	require.NoError(t, err)
	workplaceID := workplace.Workplace.ID

	svc := NewVisitService(db, nil)
	_, err = svc.RecordVisit(ctx, auth, &models.RecordVisitRequest{
		ExpertID: expertID, WorkplaceID: workplaceID, Month: "2023-07", Visited: boolPtr(true),
	})
	require.NoError(t, err)

	require.NoError(t, NewPersonnelService(db, 0).Delete(ctx, auth, models.RoleExpert, expertID))

	summary, err := svc.VisitSummary(ctx, auth, expertID)
	require.NoError(t, err)
	require.Contains(t, summary, workplaceID)
	assert.True(t, summary[workplaceID].Visits["2023-07"].Visited)
}

func TestRecordVisitLosingInsertRaceUpdates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	expertID := createExpert(t, db, auth, models.ExpertClassA, 1000)
	workplace, err := NewWorkplaceService(db, nil).Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Plant", HazardTier: models.HazardLow, Headcount: 4, ExpertID: uintPtr(expertID),
	})
	require.NoError(t, err)
	workplaceID := workplace.Workplace.ID

	// another writer inserts the same triple between our lookup and insert
	var rivalID uint
	fired := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:rival_visit", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "visit_records" {
			return
		}
		fired = true
		rival := tx.Session(&gorm.Session{NewDB: true, SkipHooks: true})
		now := time.Now()
		require.NoError(t, rival.Exec(
			"INSERT INTO visit_records (tenant_id, expert_id, workplace_id, month, visited, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			auth.TenantID, expertID, workplaceID, "2023-07", false, now, now).Error)
		require.NoError(t, rival.Raw("SELECT id FROM visit_records WHERE expert_id = ? AND workplace_id = ? AND month = ?",
			expertID, workplaceID, "2023-07").Scan(&rivalID).Error)
	}))

	publisher := &capturePublisher{}
	svc := NewVisitService(db, publisher)
	record, err := svc.RecordVisit(ctx, auth, &models.RecordVisitRequest{
		ExpertID: expertID, WorkplaceID: workplaceID, Month: "2023-07", Visited: boolPtr(true),
	})
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, rivalID, record.ID)
	assert.True(t, record.Visited)
	assert.Equal(t, []string{VisitUpdated}, publisher.actions())

	var rows []models.VisitRecord
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Visited)
}

func TestVisitListAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	expertID := createExpert(t, db, auth, models.ExpertClassA, 1000)
	workplace, err := NewWorkplaceService(db, nil).Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Plant", HazardTier: models.HazardLow, Headcount: 4,
	})
	require.NoError(t, err)

	publisher := &capturePublisher{}
	svc := NewVisitService(db, publisher)
	for _, month := range []string{"2023-05", "2023-06", "2023-07"} {
		_, err := svc.RecordVisit(ctx, auth, &models.RecordVisitRequest{
			ExpertID: expertID, WorkplaceID: workplace.Workplace.ID, Month: month, Visited: boolPtr(true),
		})
		require.NoError(t, err)
	}

	records, total, err := svc.List(ctx, auth, &models.VisitFilter{ExpertID: expertID}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, "2023-07", records[0].Month)

	_, total, err = svc.List(ctx, auth, &models.VisitFilter{Month: "2023-06"}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	require.NoError(t, svc.DeleteVisit(ctx, auth, records[0].ID))
	assert.Equal(t, KindNotFound, KindOf(svc.DeleteVisit(ctx, auth, records[0].ID)))
	assert.Equal(t, VisitDeleted, publisher.actions()[3])
}

func TestEnsureMonthPlan(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	expertID := createExpert(t, db, auth, models.ExpertClassA, 11900)

	workplaces := NewWorkplaceService(db, nil)
	_, err := workplaces.Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Approved", HazardTier: models.HazardLow, Headcount: 2,
		ExpertID: uintPtr(expertID), ApprovalStatus: models.StatusApproved,
	})
	require.NoError(t, err)
	_, err = workplaces.Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Pending", HazardTier: models.HazardLow, Headcount: 2,
		ExpertID: uintPtr(expertID), ApprovalStatus: models.StatusPending,
	})
	require.NoError(t, err)

	svc := NewVisitService(db, nil)
	created, err := svc.EnsureMonthPlan(ctx, "2024-02")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = svc.EnsureMonthPlan(ctx, "2024-02")
	require.NoError(t, err)
	assert.Zero(t, created)

	_, err = svc.EnsureMonthPlan(ctx, "Feb 2024")
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestQuotaSchedulerJobs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	expertID := createExpert(t, db, auth, models.ExpertClassA, 10)

	_, err := NewWorkplaceService(db, nil).Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Approved", HazardTier: models.HazardLow, Headcount: 2,
		ExpertID: uintPtr(expertID), ApprovalStatus: models.StatusApproved,
	})
	require.NoError(t, err)

	scheduler := NewQuotaScheduler(db, NewVisitService(db, nil), "0 0 1 * *", "@hourly")
	scheduler.now = func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, 1, scheduler.RunVisitPlan(ctx))

	var record models.VisitRecord
	require.NoError(t, db.Where("month = ?", "2025-03").First(&record).Error)
	assert.False(t, record.Visited)

	accounts := scheduler.RunOvercommitAudit(ctx)
	require.Len(t, accounts, 1)
	assert.Equal(t, -10, accounts[0].AssignedMinutes)
}

func TestQuotaSchedulerRejectsBadSpec(t *testing.T) {
	db := newTestDB(t)
	scheduler := NewQuotaScheduler(db, NewVisitService(db, nil), "not a cron", "@hourly")
	assert.Error(t, scheduler.Start())
}
