package main

import (
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrStrictValidation indicates the written PDF failed structural
// validation.
var ErrStrictValidation = errors.New("strict PDF validation failed")

// verifyPDF runs pdfcpu's full structural validation over the written
// file. The pipeline already checks the %PDF header and size bounds;
// --strict additionally walks the cross-reference table and object
// graph.
func verifyPDF(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationStrict

	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStrictValidation, path, err)
	}
	return nil
}
