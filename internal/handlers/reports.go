package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vaxassist/vax-web-ui/internal/models"
)

type reportView struct {
	ID          string
	Title       string
	Description string
	Status      string
	Reporter    string
	CreatedAt   string
}

type reportsPageData struct {
	UserName string
	IsAdmin  bool
	Reports  []reportView
	Notice   string
}

func viewReports(reports []models.Report) []reportView {
	out := make([]reportView, len(reports))
	for i, rep := range reports {
		out[i] = reportView{
			ID:          rep.ID,
			Title:       rep.Title,
			Description: rep.Description,
			Status:      rep.Status,
			Reporter:    rep.User.FullName(),
			CreatedAt:   rep.CreatedAt.Format(time.DateOnly),
		}
	}
	return out
}

// HandleReportsPage lists the signed-in user's own issue reports.
func (m *Main) HandleReportsPage(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	reports, err := st.api.UserReports(r.Context())
	if err != nil {
		m.logger.Error("Failed to load reports", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data := reportsPageData{
		UserName: st.session.FullName,
		IsAdmin:  st.session.IsAdmin,
		Reports:  viewReports(reports),
		Notice:   r.URL.Query().Get("notice"),
	}
	if err := m.templates.ExecuteTemplate(w, "reports.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleCreateReport files a new issue report.
func (m *Main) HandleCreateReport(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	title := r.FormValue("title")
	description := r.FormValue("description")
	if title == "" || description == "" {
		http.Error(w, "Title and description are required", http.StatusBadRequest)
		return
	}
	if err := st.api.CreateReport(r.Context(), title, description); err != nil {
		m.logger.Error("Failed to create report", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/reports?notice=Report+submitted", http.StatusSeeOther)
}
