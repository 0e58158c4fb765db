package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AliyaType is the kind of honor an aliyah debt was incurred for.
type AliyaType string

const (
	AliyaRishon   AliyaType = "rishon"
	AliyaSheni    AliyaType = "sheni"
	AliyaShlishi  AliyaType = "shlishi"
	AliyaRevii    AliyaType = "revii"
	AliyaChamishi AliyaType = "chamishi"
	AliyaShishi   AliyaType = "shishi"
	AliyaShvii    AliyaType = "shvii"
	AliyaMaftir   AliyaType = "maftir"
	AliyaHagbaha  AliyaType = "hagbaha"
	AliyaGelila   AliyaType = "gelila"
	AliyaPetichah AliyaType = "petichah"
	AliyaOther    AliyaType = "other"
)

var aliyaTypes = map[AliyaType]struct{}{
	AliyaRishon: {}, AliyaSheni: {}, AliyaShlishi: {}, AliyaRevii: {},
	AliyaChamishi: {}, AliyaShishi: {}, AliyaShvii: {}, AliyaMaftir: {},
	AliyaHagbaha: {}, AliyaGelila: {}, AliyaPetichah: {}, AliyaOther: {},
}

// Valid reports whether t belongs to the fixed enumeration.
func (t AliyaType) Valid() bool {
	_, ok := aliyaTypes[t]
	return ok
}

// Aliyah is a ledger entry: an amount a user owes for an aliyah honor.
// Whether it is paid is derived from PaidAmount and Amount, never stored.
type Aliyah struct {
	ID         uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	UserID     uuid.UUID       `json:"userId" gorm:"type:char(36);not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	PaidAmount decimal.Decimal `json:"paidAmount" gorm:"type:decimal(12,2);not null;default:0"`
	Parsha     string          `json:"parsha" gorm:"size:100;not null"`
	AliyaType  AliyaType       `json:"aliyaType" gorm:"type:varchar(20);not null"`
	Date       time.Time       `json:"date" gorm:"not null;index"`
	PaidDate   *time.Time      `json:"paidDate,omitempty"`
	Version    int64           `json:"version" gorm:"not null;default:0"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`

	// Relations
	PaymentHistory []PaymentEntry `json:"paymentHistory" gorm:"foreignKey:AliyahID"`
	User           *User          `json:"-" gorm:"foreignKey:UserID"`
}

// TableName keeps the plural used by the API routes.
func (Aliyah) TableName() string {
	return "aliyot"
}

// BeforeCreate sets UUID before creating the record.
func (a *Aliyah) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsPaid reports whether the paid amount covers the total.
func (a *Aliyah) IsPaid() bool {
	return a.PaidAmount.GreaterThanOrEqual(a.Amount)
}

// Remaining returns the unpaid balance, never negative.
func (a *Aliyah) Remaining() decimal.Decimal {
	rest := a.Amount.Sub(a.PaidAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// MarshalJSON adds the derived isPaid flag to the encoded aliyah.
func (a Aliyah) MarshalJSON() ([]byte, error) {
	type plain Aliyah
	history := a.PaymentHistory
	if history == nil {
		history = []PaymentEntry{}
	}
	p := plain(a)
	p.PaymentHistory = history
	return json.Marshal(struct {
		plain
		IsPaid    bool            `json:"isPaid"`
		Remaining decimal.Decimal `json:"remaining"`
	}{
		plain:     p,
		IsPaid:    a.IsPaid(),
		Remaining: a.Remaining(),
	})
}

// Statistics aggregates a user's aliyot.
type Statistics struct {
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	PaidAmount   decimal.Decimal `json:"paidAmount"`
	UnpaidAmount decimal.Decimal `json:"unpaidAmount"`
	Count        int             `json:"count"`
}

// Summarize computes totals over aliyot.
func Summarize(aliyot []Aliyah) Statistics {
	stats := Statistics{
		TotalAmount:  decimal.Zero,
		PaidAmount:   decimal.Zero,
		UnpaidAmount: decimal.Zero,
		Count:        len(aliyot),
	}
	for i := range aliyot {
		stats.TotalAmount = stats.TotalAmount.Add(aliyot[i].Amount)
		stats.PaidAmount = stats.PaidAmount.Add(aliyot[i].PaidAmount)
		stats.UnpaidAmount = stats.UnpaidAmount.Add(aliyot[i].Remaining())
	}
	return stats
}
