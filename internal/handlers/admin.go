package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vaxassist/vax-web-ui/internal/models"
)

type adminUserView struct {
	ID       string
	Name     string
	Email    string
	Role     string
	JoinedAt string
}

type adminUsersPageData struct {
	UserName string
	IsAdmin  bool
	Users    []adminUserView
}

// HandleAdminUsers lists every account for the admin console.
func (m *Main) HandleAdminUsers(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	users, err := st.api.Users(r.Context())
	if err != nil {
		m.logger.Error("Failed to load users", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	views := make([]adminUserView, len(users))
	for i, u := range users {
		views[i] = adminUserView{
			ID:       u.ID,
			Name:     u.FullName(),
			Email:    u.Email,
			Role:     u.Role,
			JoinedAt: u.CreatedAt.Format(time.DateOnly),
		}
	}
	data := adminUsersPageData{UserName: st.session.FullName, IsAdmin: true, Users: views}
	if err := m.templates.ExecuteTemplate(w, "admin_users.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleAdminUserRole flips an account between user and admin.
func (m *Main) HandleAdminUserRole(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	userID := r.FormValue("user_id")
	role := r.FormValue("role")
	if userID == "" || (role != models.RoleUser && role != models.RoleAdmin) {
		http.Error(w, "A user and a valid role are required", http.StatusBadRequest)
		return
	}
	if err := st.api.UpdateUserRole(r.Context(), userID, role); err != nil {
		m.logger.Error("Failed to update role",
			slog.String("userID", userID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

// HandleAdminUserDelete removes an account.
func (m *Main) HandleAdminUserDelete(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	userID := r.FormValue("user_id")
	if userID == "" {
		http.Error(w, "A user is required", http.StatusBadRequest)
		return
	}
	if err := st.api.DeleteUser(r.Context(), userID); err != nil {
		m.logger.Error("Failed to delete user",
			slog.String("userID", userID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

// HandleAdminReports lists every filed report.
func (m *Main) HandleAdminReports(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	reports, err := st.api.Reports(r.Context())
	if err != nil {
		m.logger.Error("Failed to load reports", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data := reportsPageData{
		UserName: st.session.FullName,
		IsAdmin:  true,
		Reports:  viewReports(reports),
	}
	if err := m.templates.ExecuteTemplate(w, "admin_reports.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleAdminReportStatus toggles a report between open and resolved.
func (m *Main) HandleAdminReportStatus(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	reportID := r.FormValue("report_id")
	status := r.FormValue("status")
	if reportID == "" || (status != models.ReportStatusOpen && status != models.ReportStatusResolved) {
		http.Error(w, "A report and a valid status are required", http.StatusBadRequest)
		return
	}
	if err := st.api.UpdateReportStatus(r.Context(), reportID, status); err != nil {
		m.logger.Error("Failed to update report",
			slog.String("reportID", reportID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/reports", http.StatusSeeOther)
}

// HandleAdminReportDelete removes a report.
func (m *Main) HandleAdminReportDelete(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	reportID := r.FormValue("report_id")
	if reportID == "" {
		http.Error(w, "A report is required", http.StatusBadRequest)
		return
	}
	if err := st.api.DeleteReport(r.Context(), reportID); err != nil {
		m.logger.Error("Failed to delete report",
			slog.String("reportID", reportID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/reports", http.StatusSeeOther)
}

type adminModelsPageData struct {
	UserName string
	IsAdmin  bool
	Models   []models.Model
}

// HandleAdminModels lists registered assistant models, active first.
func (m *Main) HandleAdminModels(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	list, err := st.api.Models(r.Context())
	if err != nil {
		m.logger.Error("Failed to load models", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data := adminModelsPageData{UserName: st.session.FullName, IsAdmin: true, Models: list}
	if err := m.templates.ExecuteTemplate(w, "admin_models.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleAdminModelSave creates a model, or updates it when model_id is set.
func (m *Main) HandleAdminModelSave(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	modelID := r.FormValue("model_id")
	name := r.FormValue("name")
	key := r.FormValue("key")
	description := r.FormValue("description")
	if name == "" || key == "" {
		http.Error(w, "Name and key are required", http.StatusBadRequest)
		return
	}

	var err error
	if modelID == "" {
		err = st.api.AddModel(r.Context(), name, key, description)
	} else {
		err = st.api.UpdateModel(r.Context(), modelID, name, key, description)
	}
	if err != nil {
		m.logger.Error("Failed to save model", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/models", http.StatusSeeOther)
}

// HandleAdminModelDelete removes a registered model.
func (m *Main) HandleAdminModelDelete(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	modelID := r.FormValue("model_id")
	if modelID == "" {
		http.Error(w, "A model is required", http.StatusBadRequest)
		return
	}
	if err := st.api.DeleteModel(r.Context(), modelID); err != nil {
		m.logger.Error("Failed to delete model",
			slog.String("modelID", modelID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/models", http.StatusSeeOther)
}

// HandleAdminModelActivate makes a model the one answering chats.
func (m *Main) HandleAdminModelActivate(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	modelID := r.FormValue("model_id")
	if modelID == "" {
		http.Error(w, "A model is required", http.StatusBadRequest)
		return
	}
	if err := st.api.ActivateModel(r.Context(), modelID); err != nil {
		m.logger.Error("Failed to activate model",
			slog.String("modelID", modelID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/models", http.StatusSeeOther)
}

type adminExportPageData struct {
	UserName  string
	IsAdmin   bool
	System    string
	Text      string
	PairCount int
}

// HandleAdminExportPage shows the Q/A-to-JSONL tool, with a live pair count
// when text was pasted into the preview form.
func (m *Main) HandleAdminExportPage(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	text := r.FormValue("text")
	data := adminExportPageData{
		UserName:  st.session.FullName,
		IsAdmin:   true,
		System:    r.FormValue("system"),
		Text:      text,
		PairCount: models.CountQAPairs(text),
	}
	if err := m.templates.ExecuteTemplate(w, "admin_export.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleAdminExport converts pasted Q/A text into a JSONL training file and
// streams it back as a download, filename courtesy of the backend.
func (m *Main) HandleAdminExport(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	system := r.FormValue("system")
	text := r.FormValue("text")
	if text == "" {
		http.Error(w, "Text is required", http.StatusBadRequest)
		return
	}

	filename, body, err := st.api.ExportJSONL(r.Context(), system, text)
	if err != nil {
		m.logger.Error("Failed to export JSONL", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/jsonl")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := io.Copy(w, body); err != nil {
		m.logger.Error("Failed to stream JSONL download", slog.String(errLoggerKey, err.Error()))
	}
}
