package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// Register installs the custom rules on gin's validator engine.
func Register() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("idempotency_key", validIdempotencyKey)
		}
	})
}

// ValidIdempotencyKey reports whether key is acceptable as an idempotency key:
// 8 to 255 printable ASCII characters without spaces.
func ValidIdempotencyKey(key string) bool {
	if len(key) < 8 || len(key) > 255 {
		return false
	}
	for _, r := range key {
		if r <= ' ' || r > '~' {
			return false
		}
	}
	return true
}

func validIdempotencyKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	return key == "" || ValidIdempotencyKey(key)
}

// Describe turns a binding error into a field → message map.
func Describe(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]interface{}{"body": err.Error()}
	}

	out := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		out[jsonPath(fe)] = message(fe)
	}
	return out
}

func jsonPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s item(s) or characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s item(s) or characters", fe.Param())
	case "uuid", "uuid4":
		return "must be a UUID"
	case "email":
		return "must be a valid email address"
	case "unique":
		return "must not contain duplicates"
	case "idempotency_key":
		return "must be 8-255 printable characters without spaces"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
