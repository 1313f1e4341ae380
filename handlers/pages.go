package handlers

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"cinelist/services/sessions"
)

//go:embed templates/*.html
var pageTemplatesFS embed.FS

// PagesHandler serves the server-rendered HTML shell. The pages are thin;
// list contents and search results are loaded from the JSON API by the
// page scripts.
type PagesHandler struct {
	indexTemplate     *template.Template
	signInTemplate    *template.Template
	signUpTemplate    *template.Template
	protectedTemplate *template.Template
	inviteTemplate    *template.Template
}

func NewPagesHandler() *PagesHandler {
	baseTmpl := template.Must(template.New("").ParseFS(pageTemplatesFS, "templates/base.html"))

	page := func(name string) *template.Template {
		return template.Must(template.Must(baseTmpl.Clone()).ParseFS(pageTemplatesFS, "templates/"+name))
	}

	return &PagesHandler{
		indexTemplate:     page("index.html"),
		signInTemplate:    page("sign_in.html"),
		signUpTemplate:    page("sign_up.html"),
		protectedTemplate: page("protected.html"),
		inviteTemplate:    page("invite.html"),
	}
}

type pageData struct {
	Title     string
	SignedIn  bool
	UserEmail string
}

func (h *PagesHandler) data(r *http.Request, title string) pageData {
	d := pageData{Title: title}
	if user, ok := sessions.UserFrom(r.Context()); ok {
		d.SignedIn = true
		d.UserEmail = user.Email
	}
	return d
}

func (h *PagesHandler) render(w http.ResponseWriter, tmpl *template.Template, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("[pages] render %s: %v", name, err)
	}
}

func (h *PagesHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.indexTemplate, "index", h.data(r, "CineList"))
}

func (h *PagesHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.signInTemplate, "sign_in", h.data(r, "Sign in"))
}

func (h *PagesHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.signUpTemplate, "sign_up", h.data(r, "Sign up"))
}

func (h *PagesHandler) Protected(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.protectedTemplate, "protected", h.data(r, "Your list"))
}

// Invite is where invited accounts land after exchanging their code; it
// prompts for an initial password.
func (h *PagesHandler) Invite(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.inviteTemplate, "invite", h.data(r, "Welcome"))
}
