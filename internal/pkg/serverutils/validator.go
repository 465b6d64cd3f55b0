package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"ai-tutor-be/pkg/learning"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest checks validate tags and reports the first failing
// fields as an Input error
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return learning.NewInputError(learning.CodeMalformedQuery, "invalid request", "Check the request body and try again.")
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return learning.NewInputError(learning.CodeMalformedQuery,
		"invalid fields: "+strings.Join(fields, ", "),
		"Fix the listed fields and send the request again.")
}
