package quote

import (
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/discount"
)

const asOfLayout = "2006-01-02"

// Input is the JSON body of a quote request.
type Input struct {
	Currency     string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Items        []ItemInput       `json:"items" validate:"max=500,dive"`
	CouponCode   string            `json:"couponCode" validate:"omitempty,max=64"`
	GiftCardCode string            `json:"giftCardCode" validate:"omitempty,max=64"`
	Jurisdiction JurisdictionInput `json:"jurisdiction"`
	AsOf         string            `json:"asOf" validate:"omitempty,datetime=2006-01-02"`
}

// ItemInput is one cart line. UnitPrice is in minor units.
type ItemInput struct {
	ID            string          `json:"id" validate:"required,max=128"`
	Category      string          `json:"category" validate:"required,oneof=tickets shop"`
	UnitPrice     int64           `json:"unitPrice" validate:"gte=0"`
	Quantity      uint32          `json:"quantity" validate:"lte=10000"`
	DiscountRules []discount.Spec `json:"discountRules" validate:"max=20"`
}

// JurisdictionInput locates the sale for tax resolution.
type JurisdictionInput struct {
	EventTypeID string `json:"eventTypeId" validate:"omitempty,uuid"`
	Country     string `json:"country" validate:"omitempty,len=2,alpha"`
	County      string `json:"county" validate:"max=128"`
	City        string `json:"city" validate:"max=128"`
}

// RefreshInput is the body of an admin tax pool refresh.
type RefreshInput struct {
	TenantID string `json:"tenantId" validate:"required,uuid"`
	Country  string `json:"country" validate:"required,len=2,alpha"`
}

// NewValidator returns a validator reporting JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate returns a 400 AppError listing each failing field and rule.
func validate(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return common.BadRequest("invalid request", nil)
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[trimRoot(fe.Namespace())] = fe.Tag()
	}
	return common.BadRequest("request validation failed", details)
}

func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
