package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/httputil"
	"github.com/songon-extension/access-server/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// bind decodes a JSON or url-encoded form body into dst and validates it. The public
// site posts forms, the back office posts JSON.
func bind(r *http.Request, dst any) error {
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return apperrors.ValidationError("Corps de requête invalide")
		}
	} else if err := bindForm(r, dst); err != nil {
		return err
	}
	return validate(dst)
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// bindForm maps the first value of every form field onto the json-tagged fields of dst.
// Form bodies only ever carry string fields.
func bindForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return apperrors.ValidationError("Formulaire invalide")
	}
	values := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		values[key] = r.PostForm.Get(key)
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return apperrors.ValidationError("Formulaire invalide")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.ValidationError("Formulaire invalide")
	}
	return nil
}

func validate(dst any) error {
	err := util.Validator().Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ValidationError("Requête invalide")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return apperrors.ValidationError("Requête invalide").WithDetails(fields)
}
