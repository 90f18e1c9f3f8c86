package documents

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrIncomplete indicates a document missing fields required for posting.
var ErrIncomplete = kinds.NewError(kinds.ErrValidation, "documents: document incomplete")

// IncompleteError lists failing fields.
type IncompleteError struct {
	Fields []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("documents: document incomplete: %s", strings.Join(e.Fields, ", "))
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }

// Validator checks document completeness before posting.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a validator that compares decimal fields numerically.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return &Validator{v: v}
}

// Validate returns *IncompleteError naming every failing field.
func (val *Validator) Validate(doc Document) error {
	err := val.v.Struct(doc)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", strings.TrimPrefix(fe.Namespace(), "Document."), fe.Tag()))
	}
	return &IncompleteError{Fields: fields}
}

// decimalValue exposes decimals to the gt/gte tags, which only compare
// against zero.
func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
