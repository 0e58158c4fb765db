package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliyahIsPaidIsDerived(t *testing.T) {
	a := Aliyah{Amount: decimal.NewFromInt(100), PaidAmount: decimal.NewFromInt(40)}
	assert.False(t, a.IsPaid())
	assert.True(t, a.Remaining().Equal(decimal.NewFromInt(60)))

	a.PaidAmount = decimal.NewFromInt(100)
	assert.True(t, a.IsPaid())
	assert.True(t, a.Remaining().IsZero())

	a.Amount = decimal.NewFromInt(150)
	assert.False(t, a.IsPaid())
}

func TestAliyahZeroAmountIsPaid(t *testing.T) {
	a := Aliyah{Amount: decimal.Zero, PaidAmount: decimal.Zero}
	assert.True(t, a.IsPaid())
}

func TestAliyahMarshalJSONIncludesDerivedFields(t *testing.T) {
	a := Aliyah{
		Parsha:     "Bereshit",
		AliyaType:  AliyaMaftir,
		Amount:     decimal.NewFromInt(200),
		PaidAmount: decimal.NewFromInt(80),
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, false, out["isPaid"])
	assert.Equal(t, "120", out["remaining"])
	assert.Equal(t, "Bereshit", out["parsha"])
	assert.Equal(t, []interface{}{}, out["paymentHistory"])
}

func TestSummarize(t *testing.T) {
	aliyot := []Aliyah{
		{Amount: decimal.NewFromInt(100), PaidAmount: decimal.NewFromInt(100)},
		{Amount: decimal.NewFromInt(50), PaidAmount: decimal.NewFromInt(20)},
		{Amount: decimal.NewFromInt(30), PaidAmount: decimal.Zero},
	}

	stats := Summarize(aliyot)
	assert.Equal(t, 3, stats.Count)
	assert.True(t, stats.TotalAmount.Equal(decimal.NewFromInt(180)))
	assert.True(t, stats.PaidAmount.Equal(decimal.NewFromInt(120)))
	assert.True(t, stats.UnpaidAmount.Equal(decimal.NewFromInt(60)))
}

func TestAliyaTypeValid(t *testing.T) {
	assert.True(t, AliyaShlishi.Valid())
	assert.True(t, AliyaOther.Valid())
	assert.False(t, AliyaType("kohen-gadol").Valid())
}
