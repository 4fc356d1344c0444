package middleware

import (
	"fmt"
	"net/http"

	"github.com/tradelinehq/tradeline/api/responses"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/logger"
)

func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					err := pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("panic: %v", rvr))
					responses.WriteError(r.Context(), logg, w, err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
