package httpapi

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared across every request DTO: struct tags declare the
// rule, one instance amortizes the reflection cache validator/v10 builds
// per type across every request this process handles.
var validate = validator.New(validator.WithRequiredStructEnabled())
