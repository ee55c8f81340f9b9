package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/vaxassist/vax-web-ui/internal/models"
)

// Users lists all accounts. Admin only.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserRole changes an account's role.
func (c *Client) UpdateUserRole(ctx context.Context, userID, role string) error {
	return c.do(ctx, http.MethodPut, "/users/"+userID, map[string]string{"role": role}, nil)
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+userID, nil, nil)
}

// Reports lists every filed report. Admin only.
func (c *Client) Reports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := c.do(ctx, http.MethodGet, "/reports", nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// UserReports lists the signed-in user's own reports.
func (c *Client) UserReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := c.do(ctx, http.MethodGet, "/reports/user", nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// CreateReport files a new report.
func (c *Client) CreateReport(ctx context.Context, title, description string) error {
	body := map[string]string{"title": title, "description": description}
	return c.do(ctx, http.MethodPost, "/reports", body, nil)
}

// UpdateReportStatus flips a report between open and resolved.
func (c *Client) UpdateReportStatus(ctx context.Context, reportID, status string) error {
	return c.do(ctx, http.MethodPut, "/reports/"+reportID, map[string]string{"status": status}, nil)
}

// DeleteReport removes a report.
func (c *Client) DeleteReport(ctx context.Context, reportID string) error {
	return c.do(ctx, http.MethodDelete, "/reports/"+reportID, nil, nil)
}

// modelPayload tolerates both id and _id from the backend.
type modelPayload struct {
	models.Model
	MongoID string `json:"_id"`
}

// Models lists registered assistant models, normalized and sorted for the
// admin table.
func (c *Client) Models(ctx context.Context) ([]models.Model, error) {
	var payload []modelPayload
	if err := c.do(ctx, http.MethodGet, "/admin/models/all", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]models.Model, 0, len(payload))
	for _, p := range payload {
		m := p.Model
		if m.ID == "" {
			m.ID = p.MongoID
		}
		out = append(out, m)
	}
	models.SortModels(out)
	return out, nil
}

// AddModel registers a new assistant model.
func (c *Client) AddModel(ctx context.Context, name, key, description string) error {
	body := map[string]string{"name": name, "key": key, "description": description}
	return c.do(ctx, http.MethodPost, "/admin/models/add", body, nil)
}

// UpdateModel edits a model's name, key, or description.
func (c *Client) UpdateModel(ctx context.Context, modelID, name, key, description string) error {
	body := map[string]string{"name": name, "key": key, "description": description}
	return c.do(ctx, http.MethodPut, "/admin/models/"+modelID, body, nil)
}

// DeleteModel removes a model registration.
func (c *Client) DeleteModel(ctx context.Context, modelID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/models/"+modelID, nil, nil)
}

// ActivateModel makes the given model the active one.
func (c *Client) ActivateModel(ctx context.Context, modelID string) error {
	return c.do(ctx, http.MethodPost, "/admin/models/activate/"+modelID, nil, nil)
}

// ExportJSONL converts pasted Q/A text into a JSONL fine-tuning dataset. It
// returns the attachment filename (from Content-Disposition, with a default
// when absent) and the response body for streaming to the browser; the
// caller owns closing it.
func (c *Client) ExportJSONL(ctx context.Context, system, text string) (string, io.ReadCloser, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"system": system, "text": text}).
		Post("/admin/tools/qa-to-jsonl")
	if err != nil {
		return "", nil, err
	}
	if resp.StatusCode() >= 300 {
		defer resp.RawBody().Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.RawBody(), 4*1024))
		var payload errorBody
		_ = json.Unmarshal(raw, &payload)
		return "", nil, &Error{Status: resp.StatusCode(), Message: payload.Message, Detail: payload.Detail}
	}
	return exportFilename(resp.Header().Get("Content-Disposition")), resp.RawBody(), nil
}

func exportFilename(contentDisposition string) string {
	if contentDisposition == "" {
		return defaultExportFilename
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return defaultExportFilename
	}
	if name := params["filename"]; name != "" {
		return name
	}
	return defaultExportFilename
}
