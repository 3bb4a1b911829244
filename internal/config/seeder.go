package config

import (
	"log"

	"spsc-cashround/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder fills the local copies of the external directory tables.
// This is for development/testing only; in production the member directory
// and ledger sections are owned by other systems.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running development seeders...")

	if err := models.AutoMigrateExternal(s.db); err != nil {
		return err
	}

	if err := s.seedMembers(); err != nil {
		log.Printf("⚠️ Member seeder skipped: %v", err)
	}

	if err := s.seedLedgerSections(); err != nil {
		log.Printf("⚠️ Ledger section seeder skipped: %v", err)
	}

	log.Println("✅ Development seeding completed")
	return nil
}

func (s *Seeder) seedMembers() error {
	members := []models.Member{
		{MembNo: "000101", FullName: "สมชาย ใจดี", DeptName: "ฝ่ายบัญชี", StatusDesc: "ปกติ"},
		{MembNo: "000102", FullName: "สมหญิง รักงาน", DeptName: "ฝ่ายบุคคล", StatusDesc: "ปกติ"},
		{MembNo: "000103", FullName: "วิชัย มั่นคง", DeptName: "ฝ่ายสินเชื่อ", StatusDesc: "ปกติ"},
		{MembNo: "000104", FullName: "มาลี ศรีสุข", DeptName: "ฝ่ายบัญชี", StatusDesc: "ปกติ"},
		{MembNo: "000105", FullName: "ประเสริฐ ทองดี", DeptName: "ฝ่ายไอที", StatusDesc: "ปกติ"},
	}

	for _, m := range members {
		var count int64
		s.db.Model(&models.Member{}).Where("memb_no = ?", m.MembNo).Count(&count)
		if count > 0 {
			continue
		}
		if err := s.db.Create(&m).Error; err != nil {
			return err
		}
	}

	log.Printf("✅ Members seeded: %d", len(members))
	return nil
}

func (s *Seeder) seedLedgerSections() error {
	sections := []models.LedgerSection{
		{Code: "FEE", Name: "ค่าธรรมเนียมวง", Amount: decimal.NewFromInt(50), IsActive: true},
		{Code: "SAVING", Name: "เงินออมสะสม", Amount: decimal.NewFromInt(100), IsActive: true},
		{Code: "WELFARE", Name: "เงินสวัสดิการ", Amount: decimal.NewFromInt(20), IsActive: true},
	}

	for _, sec := range sections {
		var count int64
		s.db.Model(&models.LedgerSection{}).Where("code = ?", sec.Code).Count(&count)
		if count > 0 {
			continue
		}
		if err := s.db.Create(&sec).Error; err != nil {
			return err
		}
	}

	log.Printf("✅ Ledger sections seeded: %d", len(sections))
	return nil
}
