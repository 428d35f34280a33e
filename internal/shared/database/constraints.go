package database

import (
	"fmt"

	"gorm.io/gorm"
)

// checkConstraints mirror the service invariants at the storage layer
var checkConstraints = []struct {
	table string
	name  string
	check string
}{
	{"ticket_types", "chk_ticket_types_quota_non_negative", "quota_total >= 0 AND quota_reserved >= 0"},
	{"ticket_types", "chk_ticket_types_reserved_within_total", "quota_reserved <= quota_total"},
	{"ticket_types", "chk_ticket_types_price_non_negative", "price >= 0"},
	{"ticket_types", "chk_ticket_types_sale_window", "sale_start IS NULL OR sale_end IS NULL OR sale_end > sale_start"},
	{"ticket_types", "chk_ticket_types_phase", "phase IN ('early', 'regular', 'late')"},
	{"schedule_slots", "chk_schedule_slots_time_range", "end_time > start_time"},
	{"schedule_slots", "chk_schedule_slots_status", "status IN ('tentative', 'confirmed', 'canceled')"},
	{"festival_editions", "chk_festival_editions_dates", "end_date >= start_date"},
}

// MigrateConstraints adds CHECK constraints, the stage edition key and the
// partition lookup index
func MigrateConstraints(db *gorm.DB) error {
	for _, c := range checkConstraints {
		// Postgres has no ADD CONSTRAINT IF NOT EXISTS
		if err := db.Exec(fmt.Sprintf(`ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s`, c.table, c.name)).Error; err != nil {
			return fmt.Errorf("failed to drop constraint %s: %w", c.name, err)
		}
		if err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)`, c.table, c.name, c.check)).Error; err != nil {
			return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
		}
	}

	// Edition-owned stages go away with their edition
	if err := db.Exec(`ALTER TABLE stages DROP CONSTRAINT IF EXISTS fk_stages_edition`).Error; err != nil {
		return fmt.Errorf("failed to drop constraint fk_stages_edition: %w", err)
	}
	err := db.Exec(`
		ALTER TABLE stages ADD CONSTRAINT fk_stages_edition
		FOREIGN KEY (edition_id) REFERENCES festival_editions (id) ON DELETE CASCADE
	`).Error
	if err != nil {
		return fmt.Errorf("failed to add constraint fk_stages_edition: %w", err)
	}

	// Active slots only; the conflict scan never reads canceled rows
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_schedule_slots_active_partition
		ON schedule_slots (edition_id, stage_id, day, start_time)
		WHERE status <> 'canceled';
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create active partition index: %w", err)
	}

	return nil
}
