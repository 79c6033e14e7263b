package httpx

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var instrumentPattern = regexp.MustCompile(`^[A-Z]{3}_[A-Z]{3}$`)

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("instrument", func(fl validator.FieldLevel) bool {
		return instrumentPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("httpx: register instrument validation: %v", err))
	}
	return v
}

// ValidInstrument checks an instrument id such as XAU_USD.
func ValidInstrument(id string) bool {
	return Validate.Var(id, "required,instrument") == nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
