package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

const maxBodyBytes = 1 << 16

func clubIDParam(r *http.Request) (domain.ClubID, error) {
	var id uint32
	err := runtime.BindStyledParameterWithOptions("simple", "clubId", chi.URLParam(r, "clubId"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return 0, err
	}
	return domain.ClubID(id), nil
}

func accountIDParam(r *http.Request) (domain.AccountID, error) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", "accountId", chi.URLParam(r, "accountId"), &raw, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", err
	}
	id := domain.NormalizeAccountID(raw)
	if id == "" {
		return "", errors.New("accountId must be non-empty")
	}
	return id, nil
}

// decodeBody strictly decodes a single JSON object into dst.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("missing request body")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}
