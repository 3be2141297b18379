package usecase_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/usecase"
)

func TestErrors_ErrorsAreDistinct(t *testing.T) {
	errs := []error{
		usecase.ErrStatusReportNotFound,
		usecase.ErrStatusPageNotFound,
		usecase.ErrInvalidPageComponents,
		usecase.ErrPageMismatch,
	}

	for i, a := range errs {
		gt.Value(t, a).NotNil()
		for j, b := range errs {
			if i != j {
				gt.Bool(t, errors.Is(a, b)).False()
			}
		}
	}
}
