// Package httpapi exposes the REST surface. Handlers are thin glue: decode,
// resolve the caller identity, call a service, encode.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/taskforge/taskforge/internal/app"
	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/app/domain/user"
	"github.com/taskforge/taskforge/internal/app/metrics"
	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/internal/middleware"
	"github.com/taskforge/taskforge/pkg/logger"
)

// SkipAuthPaths lists the endpoints reachable without a bearer token.
var SkipAuthPaths = []string{
	"/healthz",
	"/metrics",
	"/auth/register",
	"/auth/login",
	"/auth/refresh",
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// Options configures the HTTP surface.
type Options struct {
	// AuditFile, when set, appends request audit entries as JSONL.
	AuditFile string
	// AuditMax caps the in-memory audit window.
	AuditMax int
	// CORSOrigins lists allowed origins; empty disables CORS handling.
	CORSOrigins []string
	// RateLimitRPS and RateLimitBurst throttle per-client requests when
	// RateLimitRPS is positive.
	RateLimitRPS   int
	RateLimitBurst int
	// Log receives access log lines and middleware diagnostics.
	Log *logger.Logger
}

// NewHandler returns the full middleware-wrapped REST API.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	sink, err := newFileAuditSink(opts.AuditFile)
	if err != nil {
		return nil, err
	}
	h := &handler{app: application, audit: newAuditLog(opts.AuditMax, sink)}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/auth/password", h.changePassword).Methods(http.MethodPost)

	r.HandleFunc("/projects", h.createProject).Methods(http.MethodPost)
	r.HandleFunc("/projects", h.listProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", h.getProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", h.updateProject).Methods(http.MethodPatch)
	r.HandleFunc("/projects/{id}/archive", h.archiveProject).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/stats", h.projectStats).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/activities", h.projectActivities).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/members", h.addMember).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/members", h.listMembers).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/members/{userID}", h.changeRole).Methods(http.MethodPatch)
	r.HandleFunc("/projects/{id}/members/{userID}", h.removeMember).Methods(http.MethodDelete)
	r.HandleFunc("/projects/{id}/milestones", h.createMilestone).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/milestones", h.listMilestones).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/milestones/{milestoneID}/complete", h.completeMilestone).Methods(http.MethodPost)

	r.HandleFunc("/tasks", h.createTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks", h.listTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", h.getTask).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", h.updateTask).Methods(http.MethodPatch)
	r.HandleFunc("/tasks/{id}/assign", h.assignTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/complete", h.completeTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/comments", h.addComment).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/comments", h.listComments).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/notes", h.addNote).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/notes", h.listNotes).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/attachments", h.addAttachment).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/attachments", h.listAttachments).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/history", h.taskHistory).Methods(http.MethodGet)

	r.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)

	// Audit and rate limiting sit inside auth so both see the resolved
	// identity: audit entries carry the user, and limiting keys per user
	// rather than per address. Login and register are skip paths, so
	// credential guessing still burns the per-address budget.
	authMW := middleware.NewAuthMiddleware(application.Auth, opts.Log, SkipAuthPaths)
	var wrapped http.Handler = h.auditMiddleware(r)
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = opts.RateLimitRPS
		}
		wrapped = middleware.NewRateLimiter(opts.RateLimitRPS, burst, opts.Log).Handler(wrapped)
	}
	wrapped = authMW.Handler(wrapped)
	if len(opts.CORSOrigins) > 0 {
		wrapped = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(wrapped)
	}
	wrapped = metrics.InstrumentHandler(wrapped)
	wrapped = middleware.NewRequestIDMiddleware(opts.Log).Handler(wrapped)
	return wrapped, nil
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identity returns the authenticated caller, failing the request when the
// middleware did not run.
func identity(r *http.Request) (token.Identity, error) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return token.Identity{}, errors.Unauthenticated("no authenticated identity")
	}
	return id, nil
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	u, tok, err := h.app.Auth.Register(r.Context(), payload.Email, payload.DisplayName, payload.Password)
	metrics.RecordAuthAttempt("register", err == nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  userView(u),
		"token": tok,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	u, tok, err := h.app.Auth.Login(r.Context(), payload.Email, payload.Password)
	metrics.RecordAuthAttempt("login", err == nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  userView(u),
		"token": tok,
	})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := middleware.ExtractBearer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tok, err := h.app.Auth.Refresh(r.Context(), raw)
	metrics.RecordAuthAttempt("refresh", err == nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	raw, err := middleware.ExtractBearer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.app.Auth.Revoke(r.Context(), raw); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	tok, err := h.app.Auth.ChangePassword(r.Context(), id.UserID, payload.OldPassword, payload.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	p, err := h.app.Projects.Create(r.Context(), id.UserID, payload.Name, payload.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.app.Projects.ListFor(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.app.Projects.Get(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	var status *project.Status
	if payload.Status != nil {
		s := project.Status(*payload.Status)
		status = &s
	}
	p, err := h.app.Projects.Update(r.Context(), id.UserID, mux.Vars(r)["id"], payload.Name, payload.Description, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) archiveProject(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.app.Projects.Archive(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) projectStats(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.app.Projects.Stats(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) projectActivities(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	acts, err := h.app.Projects.Activities(r.Context(), id.UserID, mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

func (h *handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	m, err := h.app.Memberships.AddMember(r.Context(), id.UserID, mux.Vars(r)["id"], payload.UserID, project.Role(payload.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	members, err := h.app.Memberships.ListMembers(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	vars := mux.Vars(r)
	m, err := h.app.Memberships.ChangeRole(r.Context(), id.UserID, vars["id"], vars["userID"], project.Role(payload.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	if err := h.app.Memberships.RemoveMember(r.Context(), id.UserID, vars["id"], vars["userID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) createMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		DueDate     time.Time `json:"due_date"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	m, err := h.app.Projects.CreateMilestone(r.Context(), id.UserID, mux.Vars(r)["id"], payload.Title, payload.Description, payload.DueDate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handler) listMilestones(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.app.Projects.ListMilestones(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) completeMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	m, err := h.app.Projects.CompleteMilestone(r.Context(), id.UserID, vars["id"], vars["milestoneID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		ProjectID   string     `json:"project_id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		Priority    int        `json:"priority"`
		AssigneeID  string     `json:"assignee_id"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	t := task.Task{
		ProjectID:   payload.ProjectID,
		Title:       payload.Title,
		Description: payload.Description,
		Status:      task.Status(payload.Status),
		Priority:    task.Priority(payload.Priority),
		AssigneeID:  payload.AssigneeID,
	}
	if payload.DueDate != nil {
		t.DueDate = *payload.DueDate
	}
	created, err := h.app.Tasks.Create(r.Context(), id.UserID, t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := task.Filter{
		ProjectID:  q.Get("project_id"),
		Status:     task.Status(q.Get("status")),
		AssigneeID: q.Get("assignee_id"),
	}
	list, err := h.app.Tasks.List(r.Context(), id.UserID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.app.Tasks.Get(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		Priority    *int       `json:"priority"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	patch := task.Patch{
		Title:       payload.Title,
		Description: payload.Description,
		DueDate:     payload.DueDate,
	}
	if payload.Status != nil {
		s := task.Status(*payload.Status)
		patch.Status = &s
	}
	if payload.Priority != nil {
		p := task.Priority(*payload.Priority)
		patch.Priority = &p
	}
	t, err := h.app.Tasks.Update(r.Context(), id.UserID, mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) assignTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		AssigneeID string `json:"assignee_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	t, err := h.app.Tasks.Assign(r.Context(), id.UserID, mux.Vars(r)["id"], payload.AssigneeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) completeTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.app.Tasks.MarkComplete(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	c, err := h.app.Tasks.AddComment(r.Context(), id.UserID, mux.Vars(r)["id"], payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listComments(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.app.Tasks.ListComments(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) addNote(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		Note string `json:"note"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	n, err := h.app.Tasks.AddNote(r.Context(), id.UserID, mux.Vars(r)["id"], payload.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *handler) listNotes(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.app.Tasks.ListNotes(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) addAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload struct {
		FileName  string `json:"file_name"`
		Reference string `json:"reference"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	a, err := h.app.Tasks.AddAttachment(r.Context(), id.UserID, mux.Vars(r)["id"], payload.FileName, payload.Reference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *handler) listAttachments(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.app.Tasks.ListAttachments(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) taskHistory(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.app.Tasks.History(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	if _, err := identity(r); err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// userView strips credential material before a user record leaves the API.
func userView(u user.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]string{"error": err.Error()}
	if se := errors.GetServiceError(err); se != nil {
		status = se.HTTPStatus
		body = map[string]string{"error": se.Message, "code": string(se.Code)}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
