package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Get returns the shared struct validator.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
	})

	return validate
}
