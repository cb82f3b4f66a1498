package forms

import (
	"fmt"
	"regexp"
	"strconv"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// checkValidation applies one named validation rule to a submitted
// value. It returns an empty string when the value passes.
func checkValidation(rule string, value interface{}) string {
	switch rule {
	case "number":
		if !isNumber(value) {
			return fmt.Sprintf("%v is not a number", value)
		}
	case "email":
		text, ok := value.(string)
		if !ok || !emailPattern.MatchString(text) {
			return fmt.Sprintf("%v is not a valid email", value)
		}
	}
	return ""
}

func isNumber(value interface{}) bool {
	switch v := value.(type) {
	case float64, float32, int, int32, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	default:
		return false
	}
}
