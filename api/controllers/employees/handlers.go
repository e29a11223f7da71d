package employees

import (
	"net/http"

	"github.com/angelmondragon/tipledger-backend/api/responses"
	"github.com/angelmondragon/tipledger-backend/api/validators"
	internalemployees "github.com/angelmondragon/tipledger-backend/internal/employees"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

// Tips returns the employee's ledger entries newest first with their total.
func Tips(svc internalemployees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID, err := validators.ParseUUIDParam(r, "employeeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tips, err := svc.EmployeeTips(r.Context(), employeeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tips)
	}
}
