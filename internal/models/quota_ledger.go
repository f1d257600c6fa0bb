package models

import "time"

// Ledger reasons.
const (
	LedgerReasonApprove = "approve"
	LedgerReasonRevoke  = "revoke"
	LedgerReasonDelete  = "workplace_deleted"
)

// QuotaLedgerEntry journals one applied movement. Delta is negative for a
// debit and positive for a credit.
type QuotaLedgerEntry struct {
	ID            uint          `json:"id" gorm:"primarykey"`
	TenantID      uint          `json:"tenant_id" gorm:"not null;index"`
	PersonnelRole PersonnelRole `json:"personnel_role" gorm:"not null;size:20;index:idx_ledger_personnel"`
	PersonnelID   uint          `json:"personnel_id" gorm:"not null;index:idx_ledger_personnel"`
	WorkplaceID   uint          `json:"workplace_id" gorm:"not null;index"`
	Delta         int           `json:"delta" gorm:"not null"`
	Reason        string        `json:"reason" gorm:"size:30"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (QuotaLedgerEntry) TableName() string {
	return "quota_ledger_entries"
}
