package httpgin

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// seatCodeRe matches a row number followed by a seat letter, e.g. "12A".
var seatCodeRe = regexp.MustCompile(`^[0-9]{1,3}[A-Za-z]$`)

func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("seatcode", func(fl validator.FieldLevel) bool {
		return seatCodeRe.MatchString(fl.Field().String())
	})
}
