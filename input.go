package dca

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"unicode"

	"github.com/etnz/dca/date"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate     = newValidator()
	strictPolicy = bluemonday.StrictPolicy() // Removes all HTML tags
)

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their json name, it is what users type.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Input is a transaction as entered by a user, before it is parsed.
//
// Numbers are kept as entered (json.Number accepts both JSON numbers and
// numeric strings) so that no digit is lost to floating point.
type Input struct {
	Date     string      `json:"date" validate:"required"`
	Exchange string      `json:"exchange" validate:"max=64"`
	Fiat     json.Number `json:"fiat" validate:"required,numeric"`
	Coin     json.Number `json:"coin" validate:"required,numeric"`
	Fee      json.Number `json:"fee" validate:"omitempty,numeric"`
}

// Transaction checks the shape of the input and parses it into an unsaved
// transaction of owner, amounts in the asset's base currency.
//
// It does not apply the integrity rules, see Validate.
func (in Input) Transaction(owner string, a Asset) (Transaction, error) {
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return Transaction{}, &ValidationError{Field: fe.Field(), Value: valueOf(fe), Err: shapeError(fe)}
		}
		return Transaction{}, err
	}

	day, err := date.Parse(in.Date)
	if err != nil {
		return Transaction{}, &ValidationError{Field: "date", Value: in.Date, Err: ErrMalformed}
	}
	fiat, err := ParseMoney(in.Fiat.String(), a.Base)
	if err != nil {
		return Transaction{}, &ValidationError{Field: "fiat", Value: in.Fiat.String(), Err: ErrMalformed}
	}
	coin, err := ParseQuantity(in.Coin.String())
	if err != nil {
		return Transaction{}, &ValidationError{Field: "coin", Value: in.Coin.String(), Err: ErrMalformed}
	}
	fee := M(0, a.Base)
	if in.Fee != "" {
		if fee, err = ParseMoney(in.Fee.String(), a.Base); err != nil {
			return Transaction{}, &ValidationError{Field: "fee", Value: in.Fee.String(), Err: ErrMalformed}
		}
	}
	return NewTransaction(owner, day, SanitizeLabel(in.Exchange), fiat, coin, fee), nil
}

// InputOf returns the input that would produce tx, used to prefill an edit.
func InputOf(tx Transaction) Input {
	return Input{
		Date:     tx.Date.String(),
		Exchange: tx.Exchange,
		Fiat:     json.Number(tx.Fiat.Decimal().String()),
		Coin:     json.Number(tx.Coin.String()),
		Fee:      json.Number(tx.Fee.Decimal().String()),
	}
}

// SanitizeLabel removes markup and unprintable characters from a free text
// label.
func SanitizeLabel(s string) string {
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

func valueOf(fe validator.FieldError) string {
	if v, ok := fe.Value().(json.Number); ok {
		return v.String()
	}
	if v, ok := fe.Value().(string); ok {
		return v
	}
	return ""
}

func shapeError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return ErrRequired
	case "max":
		return fmt.Errorf("%w, max %s characters", ErrTooLong, fe.Param())
	default:
		return ErrMalformed
	}
}
