package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BeforeCreate hooks assign ids client-side so inserts behave the same on
// Postgres and on the sqlite databases the test suites run against. The
// Postgres-side gen_random_uuid() default lives in the SQL migrations only;
// the gorm tags carry no function default because sqlite cannot parse one.

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (o *Order) BeforeCreate(*gorm.DB) error             { ensureID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error         { ensureID(&i.ID); return nil }
func (e *OrderEvent) BeforeCreate(*gorm.DB) error        { ensureID(&e.ID); return nil }
func (a *CreditAccount) BeforeCreate(*gorm.DB) error     { ensureID(&a.ID); return nil }
func (e *LedgerEntry) BeforeCreate(*gorm.DB) error       { ensureID(&e.ID); return nil }
func (r *CreditReservation) BeforeCreate(*gorm.DB) error { ensureID(&r.ID); return nil }
func (s *StockItem) BeforeCreate(*gorm.DB) error         { ensureID(&s.ID); return nil }
func (r *StockReservation) BeforeCreate(*gorm.DB) error  { ensureID(&r.ID); return nil }
func (v *VendorRouting) BeforeCreate(*gorm.DB) error     { ensureID(&v.ID); return nil }
func (v *VendorResponse) BeforeCreate(*gorm.DB) error    { ensureID(&v.ID); return nil }
func (p *SellerProfile) BeforeCreate(*gorm.DB) error     { ensureID(&p.ID); return nil }
func (p *BuyerProfile) BeforeCreate(*gorm.DB) error      { ensureID(&p.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error       { ensureID(&e.ID); return nil }
func (n *Notification) BeforeCreate(*gorm.DB) error      { ensureID(&n.ID); return nil }
