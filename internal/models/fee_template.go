package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeeTemplate describes a recurring charge that vouchers are generated from.
// A nil BranchID makes the template available to every branch.
type FeeTemplate struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Name      string              `bson:"name" json:"name"`
	Category  string              `bson:"category,omitempty" json:"category,omitempty"`
	BranchID  *primitive.ObjectID `bson:"branchId,omitempty" json:"branchId,omitempty"`
	Amount    int64               `bson:"amount" json:"amount"`
	Discount  int64               `bson:"discount" json:"discount"`
	IsActive  bool                `bson:"isActive" json:"isActive"`
	CreatedBy primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// AvailableTo reports whether branch admins of branchID may use the template
func (t *FeeTemplate) AvailableTo(branchID primitive.ObjectID) bool {
	return t.BranchID == nil || *t.BranchID == branchID
}

// DiscountFor combines the template and student discounts, clamped to [0, amount]
func (t *FeeTemplate) DiscountFor(studentDiscount int64) int64 {
	discount := t.Discount + studentDiscount
	if discount < 0 {
		return 0
	}
	if discount > t.Amount {
		return t.Amount
	}
	return discount
}
