package services

import (
	"context"
	"sync"
	"testing"

	"osgb/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonnelCreateDefaultsAndCeiling(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	svc := NewPersonnelService(db, 0)
	assert.Equal(t, DefaultMinuteCeiling, svc.Ceiling())

	account, err := svc.Create(ctx, auth, models.RolePhysician, &models.CreatePersonnelRequest{
		FirstName: "Zeynep", LastName: "Kaya",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMinuteCeiling, account.Account().AssignedMinutes)
	assert.Equal(t, auth.TenantID, account.Account().TenantID)

	over := DefaultMinuteCeiling + 1
	_, err = svc.Create(ctx, auth, models.RoleExpert, &models.CreatePersonnelRequest{
		FirstName: "Ali", LastName: "Veli", AssignedMinutes: &over,
	})
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = svc.Create(ctx, auth, "janitor", &models.CreatePersonnelRequest{FirstName: "A", LastName: "B"})
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestPersonnelUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	other := createTenant(t, db, "other")
	svc := NewPersonnelService(db, 0)
	id := createPersonnel(t, db, auth, models.RoleSafetyOfficer, 500)

	minutes := 700
	updated, err := svc.Update(ctx, auth, models.RoleSafetyOfficer, id, &models.UpdatePersonnelRequest{
		FirstName:       strPtr("Can"),
		AssignedMinutes: &minutes,
	})
	require.NoError(t, err)
	assert.Equal(t, "Can", updated.Account().FirstName)
	assert.Equal(t, 700, updated.Account().AssignedMinutes)

	class := models.ExpertClassB
	_, err = svc.Update(ctx, auth, models.RoleSafetyOfficer, id, &models.UpdatePersonnelRequest{ExpertiseClass: &class})
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = svc.Get(ctx, other, models.RoleSafetyOfficer, id)
	assert.Equal(t, KindNotFound, KindOf(err))

	require.NoError(t, svc.Delete(ctx, auth, models.RoleSafetyOfficer, id))
	_, err = svc.Get(ctx, auth, models.RoleSafetyOfficer, id)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestPersonnelList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	other := createTenant(t, db, "other")
	createExpert(t, db, auth, models.ExpertClassA, 100)
	createExpert(t, db, auth, models.ExpertClassB, 100)
	createExpert(t, db, other, models.ExpertClassA, 100)

	svc := NewPersonnelService(db, 0)
	accounts, total, err := svc.List(ctx, auth, models.RoleExpert, "", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, accounts, 2)
	assert.Equal(t, models.ExpertClassB, accounts[1].(*models.Expert).ExpertiseClass)

	_, total, err = svc.List(ctx, auth, models.RoleExpert, "nobody", nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestExpertClassDowngrade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	expertID := createExpert(t, db, auth, models.ExpertClassA, 11900)

	_, err := NewWorkplaceService(db, nil).Create(ctx, auth, &models.CreateWorkplaceRequest{
		Name: "Foundry", HazardTier: models.HazardDangerous, Headcount: 12, ExpertID: uintPtr(expertID),
	})
	require.NoError(t, err)

	svc := NewPersonnelService(db, 0)

	ok, err := svc.CanDowngradeExpertClass(ctx, auth, expertID, models.ExpertClassC)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanDowngradeExpertClass(ctx, auth, expertID, models.ExpertClassB)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanDowngradeExpertClass(ctx, auth, expertID, models.ExpertClassA)
	require.NoError(t, err)
	assert.True(t, ok)

	classC := models.ExpertClassC
	_, err = svc.Update(ctx, auth, models.RoleExpert, expertID, &models.UpdatePersonnelRequest{ExpertiseClass: &classC})
	assert.Equal(t, KindPolicyViolation, KindOf(err))

	classB := models.ExpertClassB
	updated, err := svc.Update(ctx, auth, models.RoleExpert, expertID, &models.UpdatePersonnelRequest{ExpertiseClass: &classB})
	require.NoError(t, err)
	assert.Equal(t, models.ExpertClassB, updated.(*models.Expert).ExpertiseClass)

	_, err = svc.CanDowngradeExpertClass(ctx, auth, expertID, "Z")
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestExpertDowngradeRacingAssignment(t *testing.T) {
	db := newConcurrentTestDB(t)
	ctx := context.Background()
	auth := createTenant(t, db, "acme")
	personnel := NewPersonnelService(db, 0)
	workplaces := NewWorkplaceService(db, nil)
	classC := models.ExpertClassC

	for round := 0; round < 10; round++ {
		expertID := createExpert(t, db, auth, models.ExpertClassB, 11900)
		created, err := workplaces.Create(ctx, auth, &models.CreateWorkplaceRequest{
			Name: "Foundry", HazardTier: models.HazardDangerous, Headcount: 12,
		})
		require.NoError(t, err)

		var downgradeErr, assignErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, downgradeErr = personnel.Update(ctx, auth, models.RoleExpert, expertID, &models.UpdatePersonnelRequest{ExpertiseClass: &classC})
		}()
		go func() {
			defer wg.Done()
			_, assignErr = workplaces.Update(ctx, auth, created.Workplace.ID, &models.UpdateWorkplaceRequest{ExpertID: uintPtr(expertID)})
		}()
		wg.Wait()

		// exactly one side wins
		require.True(t, (downgradeErr == nil) != (assignErr == nil), "downgrade=%v assign=%v", downgradeErr, assignErr)
		if downgradeErr != nil {
			assert.Equal(t, KindPolicyViolation, KindOf(downgradeErr))
		}
		if assignErr != nil {
			assert.Equal(t, KindPolicyViolation, KindOf(assignErr))
		}

		var expert models.Expert
		require.NoError(t, db.First(&expert, expertID).Error)
		var workplace models.Workplace
		require.NoError(t, db.First(&workplace, created.Workplace.ID).Error)
		assigned := workplace.ExpertID != nil && *workplace.ExpertID == expertID
		assert.False(t, assigned && expert.ExpertiseClass == models.ExpertClassC, "round %d", round)
	}
}

func TestLedgerMissingAccountIsNoop(t *testing.T) {
	db := newTestDB(t)
	auth := createTenant(t, db, "acme")
	ledger := NewQuotaLedger(db)

	charge := models.QuotaCharge{Role: models.RolePhysician, PersonnelID: 404, Minutes: 50}
	require.NoError(t, ledger.Debit(db, auth.TenantID, 1, charge, models.LedgerReasonApprove))
	require.NoError(t, ledger.Credit(db, auth.TenantID, 1, charge, models.LedgerReasonRevoke))

	var count int64
	require.NoError(t, db.Model(&models.QuotaLedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLedgerScopedToTenant(t *testing.T) {
	db := newTestDB(t)
	authA := createTenant(t, db, "tenant-a")
	authB := createTenant(t, db, "tenant-b")
	physician := createPersonnel(t, db, authB, models.RolePhysician, 300)

	ledger := NewQuotaLedger(db)
	charge := models.QuotaCharge{Role: models.RolePhysician, PersonnelID: physician, Minutes: 100}
	require.NoError(t, ledger.Debit(db, authA.TenantID, 1, charge, models.LedgerReasonApprove))
	assert.Equal(t, 300, minutesOf(t, db, models.RolePhysician, physician))

	require.NoError(t, ledger.Debit(db, authB.TenantID, 1, charge, models.LedgerReasonApprove))
	assert.Equal(t, 200, minutesOf(t, db, models.RolePhysician, physician))
}

func TestDomainErrorHelpers(t *testing.T) {
	err := conflictf("workplace %d busy", 7)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "workplace 7 busy", MessageOf(err))

	wrapped := internalError("save", err)
	assert.Equal(t, KindConflict, KindOf(wrapped))

	assert.Nil(t, internalError("save", nil))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
}
