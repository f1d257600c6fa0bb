package services

import (
	"context"
	"fmt"

	"osgb/internal/models"
	"osgb/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// QuotaLedger moves assigned minutes on personnel accounts. Every movement is
// a single column expression, so concurrent debits against the same account
// never lose updates.
type QuotaLedger struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewQuotaLedger(db *gorm.DB) *QuotaLedger {
	return &QuotaLedger{db: db, log: logger.GetLogger()}
}

// Debit subtracts amount from the account. The balance may go negative.
func (l *QuotaLedger) Debit(tx *gorm.DB, tenantID uint, workplaceID uint, charge models.QuotaCharge, reason string) error {
	return l.apply(tx, tenantID, workplaceID, charge, -charge.Minutes, reason)
}

// Credit adds amount back to the account.
func (l *QuotaLedger) Credit(tx *gorm.DB, tenantID uint, workplaceID uint, charge models.QuotaCharge, reason string) error {
	return l.apply(tx, tenantID, workplaceID, charge, charge.Minutes, reason)
}

func (l *QuotaLedger) apply(tx *gorm.DB, tenantID, workplaceID uint, charge models.QuotaCharge, delta int, reason string) error {
	if delta == 0 {
		return nil
	}
	if tx == nil {
		tx = l.db
	}
	table := charge.Role.Table()
	if table == "" {
		return fmt.Errorf("ledger: unknown role %q", charge.Role)
	}

	result := tx.Table(table).
		Where("id = ? AND tenant_id = ?", charge.PersonnelID, tenantID).
		UpdateColumn("assigned_minutes", gorm.Expr("assigned_minutes + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("ledger update %s %d: %w", charge.Role, charge.PersonnelID, result.Error)
	}

	fields := logrus.Fields{
		"tenant_id":    tenantID,
		"workplace_id": workplaceID,
		"role":         charge.Role,
		"personnel_id": charge.PersonnelID,
		"delta":        delta,
		"reason":       reason,
	}

	// account deleted since it was charged
	if result.RowsAffected == 0 {
		l.log.WithFields(fields).Warn("Ledger movement matched no account")
		return nil
	}

	entry := &models.QuotaLedgerEntry{
		TenantID:      tenantID,
		PersonnelRole: charge.Role,
		PersonnelID:   charge.PersonnelID,
		WorkplaceID:   workplaceID,
		Delta:         delta,
		Reason:        reason,
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("ledger journal: %w", err)
	}

	l.log.WithFields(fields).Debug("Ledger movement applied")
	return nil
}

// History lists the journal of one account, newest first.
func (l *QuotaLedger) History(ctx context.Context, auth AuthContext, role models.PersonnelRole, personnelID uint) ([]models.QuotaLedgerEntry, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, preconditionf("unknown personnel role %q", role)
	}

	var entries []models.QuotaLedgerEntry
	err := l.db.WithContext(ctx).
		Where("tenant_id = ? AND personnel_role = ? AND personnel_id = ?", auth.TenantID, role, personnelID).
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, internalError("load ledger history", err)
	}
	return entries, nil
}
