package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

// bodyError marks a request body that is not valid JSON for its endpoint.
type bodyError struct {
	err error
}

func (e *bodyError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *bodyError) Unwrap() error { return e.err }

type createCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Email   string `json:"email" validate:"omitempty,email,max=200"`
	Address string `json:"address" validate:"max=500"`
}

func (r *createCustomerRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			r.Name, err = d.Str()
		case "phone":
			r.Phone, err = d.Str()
		case "email":
			r.Email, err = d.Str()
		case "address":
			r.Address, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
}

type createOrderRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
	Notes      string `json:"notes" validate:"max=2000"`
}

func (r *createOrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "customerId":
			r.CustomerID, err = d.Str()
		case "notes":
			r.Notes, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
}

type discountRequest struct {
	Kind  string          `json:"kind" validate:"required,oneof=none percent flat"`
	Value decimal.Decimal `json:"value"`
}

func (r *discountRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "kind":
			r.Kind, err = d.Str()
		case "value":
			r.Value, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		return err
	})
}

func (r *discountRequest) lineDiscount() (pricing.LineDiscount, error) {
	if r == nil {
		return pricing.None{}, nil
	}
	return pricing.ParseLineDiscount(pricing.Kind(r.Kind), r.Value)
}

type addItemRequest struct {
	ItemType    string           `json:"itemType" validate:"required,oneof=service part"`
	ReferenceID string           `json:"referenceId"`
	Name        string           `json:"name" validate:"required_without=ReferenceID,max=200"`
	UnitPrice   decimal.Decimal  `json:"unitPrice"`
	Quantity    int              `json:"quantity" validate:"min=1"`
	Discount    *discountRequest `json:"discount" validate:"omitempty"`
}

func (r *addItemRequest) Decode(d *jx.Decoder) error {
	r.Quantity = 1
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "itemType":
			r.ItemType, err = d.Str()
		case "referenceId":
			r.ReferenceID, err = d.Str()
		case "name":
			r.Name, err = d.Str()
		case "unitPrice":
			r.UnitPrice, err = decodeDecimal(d)
		case "quantity":
			r.Quantity, err = d.Int()
		case "discount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			r.Discount = &discountRequest{}
			err = r.Discount.Decode(d)
		default:
			return d.Skip()
		}
		return err
	})
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

func (r *quantityRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "quantity":
			r.Quantity, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
}

type orderDiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *orderDiscountRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "amount":
			r.Amount, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		return err
	})
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = string(n)
	default:
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", d.Next())
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}
