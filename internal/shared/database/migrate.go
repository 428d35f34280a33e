package database

import (
	"festival/internal/editions"
	"festival/internal/schedule"
	"festival/internal/tickets"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&editions.Edition{},
		&editions.Stage{},
		&editions.Artist{},
		&schedule.Slot{},
		&tickets.TicketType{},
	); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
