package models

import (
	"gorm.io/gorm"
)

// AllTables lists every table the service owns, in creation order.
func AllTables() []interface{} {
	return []interface{}{
		&Project{}, &Worker{}, &Supplier{}, &Material{},
		&FundTransfer{}, &ProjectFundTransfer{},
		&WorkerAttendance{}, &MaterialPurchase{},
		&TransportationExpense{}, &WorkerTransfer{}, &WorkerMiscExpense{},
		&SupplierPayment{},
		&DailyExpenseSummary{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllTables()...)
}
