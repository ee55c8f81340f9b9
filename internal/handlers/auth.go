package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vaxassist/vax-web-ui/internal/api"
	"github.com/vaxassist/vax-web-ui/internal/services"
)

type authPageData struct {
	Error  string
	Notice string
	Email  string
}

func (m *Main) renderAuthPage(w http.ResponseWriter, name string, data authPageData) {
	if err := m.templates.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSignInPage shows the sign-in form, or goes straight to the chat when
// the browser already has a live session.
func (m *Main) HandleSignInPage(w http.ResponseWriter, r *http.Request) {
	if _, err := m.state(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	m.renderAuthPage(w, "sign_in.html", authPageData{})
}

// HandleSignIn signs the user in against the backend and opens a browser
// session carrying the backend's auth cookies.
func (m *Main) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" || password == "" {
		m.renderAuthPage(w, "sign_in.html", authPageData{Error: "Email and password are required", Email: email})
		return
	}

	cli := api.New(m.backendURL, m.logger)
	user, err := cli.Login(r.Context(), api.Credentials{Email: email, Password: password})
	if err != nil {
		m.logger.Error("Failed to sign in", slog.String(errLoggerKey, err.Error()))
		var apiErr *api.Error
		msg := "Sign in failed"
		if errors.As(err, &apiErr) {
			msg = apiErr.Error()
		}
		m.renderAuthPage(w, "sign_in.html", authPageData{Error: msg, Email: email})
		return
	}

	session, err := m.sessions.CreateSession(r.Context(), services.Session{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName(),
		IsAdmin:  user.IsAdmin(),
		Cookies:  cli.Cookies(),
	})
	if err != nil {
		m.logger.Error("Failed to persist session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, session)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleSignUpPage shows the registration form.
func (m *Main) HandleSignUpPage(w http.ResponseWriter, _ *http.Request) {
	m.renderAuthPage(w, "sign_up.html", authPageData{})
}

// HandleSignUp registers an account and sends the user to sign in.
func (m *Main) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	reg := api.Registration{
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Country:   r.FormValue("country"),
		State:     r.FormValue("state"),
	}
	if reg.Email == "" || reg.Password == "" || reg.FirstName == "" {
		m.renderAuthPage(w, "sign_up.html", authPageData{Error: "Name, email, and password are required", Email: reg.Email})
		return
	}

	cli := api.New(m.backendURL, m.logger)
	if err := cli.Register(r.Context(), reg); err != nil {
		m.logger.Error("Failed to register", slog.String(errLoggerKey, err.Error()))
		var apiErr *api.Error
		msg := "Registration failed"
		if errors.As(err, &apiErr) {
			msg = apiErr.Error()
		}
		m.renderAuthPage(w, "sign_up.html", authPageData{Error: msg, Email: reg.Email})
		return
	}
	m.renderAuthPage(w, "sign_in.html", authPageData{Notice: "Account created, you can sign in now", Email: reg.Email})
}

// HandleForgotPasswordPage shows the reset-link form.
func (m *Main) HandleForgotPasswordPage(w http.ResponseWriter, _ *http.Request) {
	m.renderAuthPage(w, "forgot_password.html", authPageData{})
}

// HandleForgotPassword asks the backend to mail a reset link.
func (m *Main) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" {
		m.renderAuthPage(w, "forgot_password.html", authPageData{Error: "Email is required"})
		return
	}
	cli := api.New(m.backendURL, m.logger)
	if err := cli.ForgetPassword(r.Context(), email); err != nil {
		m.logger.Error("Failed to request password reset", slog.String(errLoggerKey, err.Error()))
	}
	// The outcome is deliberately identical whether or not the address exists.
	m.renderAuthPage(w, "forgot_password.html", authPageData{Notice: "If that address exists, a reset link is on its way"})
}

// HandleLogout tears down both the backend session and the browser session.
func (m *Main) HandleLogout(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	if err := st.api.Logout(r.Context()); err != nil {
		m.logger.Error("Failed to log out of backend", slog.String(errLoggerKey, err.Error()))
	}
	if err := m.sessions.DeleteSession(r.Context(), st.session.ID); err != nil {
		m.logger.Error("Failed to delete session", slog.String(errLoggerKey, err.Error()))
	}
	m.dropState(st.session.ID)
	clearSessionCookie(w)
	http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
}

type profilePageData struct {
	UserName  string
	IsAdmin   bool
	Email     string
	FirstName string
	LastName  string
	Error     string
	Notice    string
}

// HandleProfilePage shows the profile form with the backend's current data.
func (m *Main) HandleProfilePage(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	user, err := st.api.Profile(r.Context())
	if err != nil {
		m.logger.Error("Failed to load profile", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data := profilePageData{
		UserName:  user.FullName(),
		IsAdmin:   st.session.IsAdmin,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Notice:    r.URL.Query().Get("notice"),
	}
	if err := m.templates.ExecuteTemplate(w, "profile.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleProfileUpdate renames the user, keeping the stored session's display
// name in sync.
func (m *Main) HandleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	firstName := r.FormValue("first_name")
	lastName := r.FormValue("last_name")
	if err := st.api.UpdateProfile(r.Context(), firstName, lastName); err != nil {
		m.logger.Error("Failed to update profile", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	st.session.FullName = firstName + " " + lastName
	if err := m.sessions.UpdateSession(r.Context(), st.session); err != nil {
		m.logger.Error("Failed to update session", slog.String(errLoggerKey, err.Error()))
	}
	http.Redirect(w, r, "/profile?notice=Profile+updated", http.StatusSeeOther)
}

// HandleChangePassword swaps the account password.
func (m *Main) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	current := r.FormValue("current_password")
	next := r.FormValue("new_password")
	if current == "" || next == "" {
		http.Error(w, "Both passwords are required", http.StatusBadRequest)
		return
	}
	if err := st.api.ChangePassword(r.Context(), current, next); err != nil {
		m.logger.Error("Failed to change password", slog.String(errLoggerKey, err.Error()))
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			http.Error(w, apiErr.Error(), apiErr.Status)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/profile?notice=Password+changed", http.StatusSeeOther)
}

// HandleInviteFriend mails an invitation on the user's behalf.
func (m *Main) HandleInviteFriend(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	name := r.FormValue("name")
	email := r.FormValue("email")
	if name == "" || email == "" {
		http.Error(w, "Name and email are required", http.StatusBadRequest)
		return
	}
	if err := st.api.InviteFriend(r.Context(), name, email); err != nil {
		m.logger.Error("Failed to send invite", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/profile?notice=Invitation+sent", http.StatusSeeOther)
}

// HandleDeleteAccount removes the account and every trace of the browser
// session.
func (m *Main) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	if err := st.api.DeleteAccount(r.Context()); err != nil {
		m.logger.Error("Failed to delete account", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.sessions.DeleteSession(r.Context(), st.session.ID); err != nil {
		m.logger.Error("Failed to delete session", slog.String(errLoggerKey, err.Error()))
	}
	m.dropState(st.session.ID)
	clearSessionCookie(w)
	http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
}
