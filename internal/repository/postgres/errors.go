package postgres

import (
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jafarshop/delifast/pkg/errors"
)

// Postgres SQLSTATE codes mapped to typed errors
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// constraintError turns constraint violations into typed errors and returns any
// other error unchanged
func constraintError(err error) error {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeCheckViolation:
		return &errors.ErrValidation{Message: fmt.Sprintf("value rejected by constraint %s", pqErr.Constraint)}
	case codeUniqueViolation:
		return &errors.ErrConflict{Message: fmt.Sprintf("duplicate value for constraint %s", pqErr.Constraint)}
	default:
		return err
	}
}
