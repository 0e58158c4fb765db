package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Notes recorded by the payment engine.
const (
	NotePaidAtCreation = "paid at creation"
	NoteFullPayment    = "full payment"
)

// PaymentEntry is one append-only line of an aliyah's payment history.
// Amount is the delta applied to the aliyah's paid amount.
type PaymentEntry struct {
	ID         uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	AliyahID   uuid.UUID       `json:"aliyahId" gorm:"type:char(36);not null;uniqueIndex:idx_aliyah_payment_seq"`
	Sequence   int             `json:"sequence" gorm:"not null;uniqueIndex:idx_aliyah_payment_seq"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Date       time.Time       `json:"date" gorm:"not null"`
	Note       string          `json:"note,omitempty" gorm:"type:text"`
	RecordedBy *uuid.UUID      `json:"recordedBy,omitempty" gorm:"type:char(36)"`
}

// TableName keeps history rows next to their aliyot.
func (PaymentEntry) TableName() string {
	return "aliyah_payments"
}

// BeforeCreate sets UUID before creating the record.
func (p *PaymentEntry) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
