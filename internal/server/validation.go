package server

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// Signed percentages or SSML rate keywords.
	ratePattern = regexp.MustCompile(`^([+-]?\d{1,3}(\.\d+)?%|x-slow|slow|medium|fast|x-fast|default)$`)
	// Locale-prefixed voice names such as en-AU-WilliamNeural.
	voicePattern = regexp.MustCompile(`^[a-z]{2,3}-[A-Za-z]{2,4}(-[A-Za-z0-9]+)+$`)
	// Slash-separated segments that each start with a letter or digit, so no
	// segment can be "." or "..".
	slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("rate", func(fl validator.FieldLevel) bool {
		return ratePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("voice", func(fl validator.FieldLevel) bool {
		return voicePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}
