package ledger

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with decimal support registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

// ValidateTransaction rejects malformed transactions before they are persisted.
func ValidateTransaction(t *Transaction) error {
	if t == nil {
		return &ValidationError{Reason: "transaction required"}
	}
	if err := validateStruct(t); err != nil {
		return err
	}
	if t.Amount.Add(t.LateFee).Sub(t.Discount).IsNegative() {
		return &ValidationError{Field: "discount", Reason: "discount exceeds amount plus late fee"}
	}
	return nil
}

// ValidateMaintenanceRequest rejects malformed maintenance requests.
func ValidateMaintenanceRequest(m *MaintenanceRequest) error {
	if m == nil {
		return &ValidationError{Reason: "maintenance request required"}
	}
	return validateStruct(m)
}

func validateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: toSnake(fe.Field()), Reason: describe(fe)}
	}
	return &ValidationError{Reason: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
