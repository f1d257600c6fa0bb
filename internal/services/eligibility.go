package services

import "osgb/internal/models"

// Minutes per employee, indexed by hazard tier.
var minutesPerEmployee = map[models.PersonnelRole]map[models.HazardTier]int{
	models.RoleExpert: {
		models.HazardLow:           10,
		models.HazardDangerous:     20,
		models.HazardVeryDangerous: 40,
	},
	models.RolePhysician: {
		models.HazardLow:           5,
		models.HazardDangerous:     10,
		models.HazardVeryDangerous: 15,
	},
	models.RoleSafetyOfficer: {
		models.HazardVeryDangerous: 5,
	},
}

// safetyOfficerMinHeadcount is exclusive: a safety officer is charged only
// above this many employees.
const safetyOfficerMinHeadcount = 10

// RequiredMinutes returns the monthly minutes role consumes at a workplace of
// the given tier and headcount. Roles that are not charged return 0.
func RequiredMinutes(role models.PersonnelRole, tier models.HazardTier, headcount int) int {
	if headcount <= 0 {
		return 0
	}
	if role == models.RoleSafetyOfficer && !SafetyOfficerEligible(tier, headcount) {
		return 0
	}
	return minutesPerEmployee[role][tier] * headcount
}

// SafetyOfficerEligible reports whether a workplace requires a safety officer.
func SafetyOfficerEligible(tier models.HazardTier, headcount int) bool {
	return tier == models.HazardVeryDangerous && headcount > safetyOfficerMinHeadcount
}

// AllowedTiers lists the hazard tiers an expert class may serve.
func AllowedTiers(class models.ExpertClass) []models.HazardTier {
	switch class {
	case models.ExpertClassA:
		return []models.HazardTier{models.HazardLow, models.HazardDangerous, models.HazardVeryDangerous}
	case models.ExpertClassB:
		return []models.HazardTier{models.HazardLow, models.HazardDangerous}
	case models.ExpertClassC:
		return []models.HazardTier{models.HazardLow}
	}
	return nil
}

// ClassCanServe reports whether an expert of class may serve tier.
func ClassCanServe(class models.ExpertClass, tier models.HazardTier) bool {
	for _, t := range AllowedTiers(class) {
		if t == tier {
			return true
		}
	}
	return false
}

// MoreRestrictive reports whether proposed serves fewer tiers than current.
func MoreRestrictive(proposed, current models.ExpertClass) bool {
	return len(AllowedTiers(proposed)) < len(AllowedTiers(current))
}

// ComputeCharges returns the debits a workplace incurs on approval, one per
// assigned role with a non-zero requirement. The tracking expert never pays.
func ComputeCharges(w *models.Workplace) []models.QuotaCharge {
	var charges []models.QuotaCharge
	for _, role := range models.AssignableRoles {
		id := w.AssignedID(role)
		if id == nil || *id == 0 {
			continue
		}
		minutes := RequiredMinutes(role, w.HazardTier, w.Headcount)
		if minutes == 0 {
			continue
		}
		charges = append(charges, models.QuotaCharge{
			Role:        role,
			PersonnelID: *id,
			Minutes:     minutes,
		})
	}
	return charges
}
