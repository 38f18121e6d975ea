package middleware

import (
	"net/http"

	"github.com/songon-extension/access-server/internal/httputil"
)

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
