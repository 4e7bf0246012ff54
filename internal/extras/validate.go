package extras

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/HerbHall/peeringmanager/internal/render"
	"github.com/HerbHall/peeringmanager/internal/webhook"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalidf("%s is required", field)
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalidf("%s %q must be an http or https URL", field, raw)
	}
	return nil
}

func validateContentType(ct models.ContentType) error {
	if !ct.Valid() {
		return invalidf("unknown content type %q", ct)
	}
	return nil
}

var webhookMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

func validateWebhook(_ context.Context, w *models.Webhook) error {
	if err := required("name", w.Name); err != nil {
		return err
	}
	if err := validateURL("url", w.URL); err != nil {
		return err
	}
	if len(w.ContentTypes) == 0 {
		return invalidf("at least one content type is required")
	}
	for _, ct := range w.ContentTypes {
		if err := validateContentType(ct); err != nil {
			return err
		}
	}
	if !w.TypeCreate && !w.TypeUpdate && !w.TypeDelete {
		return invalidf("at least one of type_create, type_update or type_delete must be set")
	}
	w.HTTPMethod = strings.ToUpper(strings.TrimSpace(w.HTTPMethod))
	if w.HTTPMethod == "" {
		w.HTTPMethod = http.MethodPost
	}
	if !webhookMethods[w.HTTPMethod] {
		return invalidf("http_method %q is not supported", w.HTTPMethod)
	}
	if w.HTTPContentType == "" {
		w.HTTPContentType = "application/json"
	}
	if _, err := webhook.ParseHeaders(w.AdditionalHeaders); err != nil {
		return invalidf("additional_headers: %v", err)
	}
	if err := render.Check(w.BodyTemplate); err != nil {
		return invalidf("body_template: %v", err)
	}
	if w.CAFilePath != "" && !w.SSLVerification {
		return invalidf("ca_file_path requires ssl_verification")
	}
	return nil
}

func validateConfigContext(_ context.Context, c *models.ConfigContext) error {
	if err := required("name", c.Name); err != nil {
		return err
	}
	if c.Data == nil {
		c.Data = map[string]any{}
	}
	return nil
}

func validateAssignment(_ context.Context, a *models.ConfigContextAssignment) error {
	if err := validateContentType(a.ContentType); err != nil {
		return err
	}
	if a.ObjectID <= 0 {
		return invalidf("object_id is required")
	}
	if a.ConfigContextID <= 0 {
		return invalidf("config_context is required")
	}
	if a.Weight < 0 || a.Weight > 32767 {
		return invalidf("weight %d out of range", a.Weight)
	}
	return nil
}

func validateExportTemplate(_ context.Context, e *models.ExportTemplate) error {
	if err := required("name", e.Name); err != nil {
		return err
	}
	if err := validateContentType(e.ContentType); err != nil {
		return err
	}
	if err := required("template", e.Template); err != nil {
		return err
	}
	if err := render.Check(e.Template); err != nil {
		return invalidf("template: %v", err)
	}
	e.FileExtension = strings.TrimPrefix(strings.TrimSpace(e.FileExtension), ".")
	return nil
}

func validateIXAPI(_ context.Context, x *models.IXAPI) error {
	if err := required("name", x.Name); err != nil {
		return err
	}
	if err := validateURL("url", x.URL); err != nil {
		return err
	}
	if err := required("api_key", x.APIKey); err != nil {
		return err
	}
	return required("api_secret", x.APISecret)
}
