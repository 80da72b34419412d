package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/service"
	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
	"github.com/spec-kit/ticket-portal/pkg/util/markdown"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "layout.html"

// notices are the only flash messages a redirect may request.
var notices = map[string]string{
	"signedup":  "Account created successfully! Please login.",
	"loggedout": "You have been logged out.",
	"submitted": "Ticket submitted successfully!",
	"reopened":  "Ticket reopened.",
	"commented": "Comment added.",
	"resolved":  "Ticket marked as Resolved.",
	"discarded": "Ticket marked as Discarded.",
	"replied":   "Reply sent.",
}

type views map[string]*template.Template

func loadViews(md *markdown.Renderer) (views, error) {
	funcs := template.FuncMap{
		"fmtTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format(domain.ConversationTimeLayout)
		},
		"markdown": md.Render,
		"statusClass": func(s domain.TicketStatus) string {
			return "status-" + string(s)
		},
	}

	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	out := make(views, len(pages))
	for _, page := range pages {
		name := path.Base(page)
		if name == layoutFile {
			continue
		}
		tmpl, err := template.New(layoutFile).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutFile, page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

// pageData is shared by every template.
type pageData struct {
	Title   string
	User    *domain.User
	Notice  string
	Error   string
	Form    map[string]string
	Tab     string
	Status  int
	Message string

	// user view
	OwnTickets []service.OwnTicket

	// admin view
	Stats    domain.TicketStats
	Sections []section
	Search   *searchResult

	// ticket detail
	Ticket       *domain.Ticket
	Conversation []domain.ConversationEntry
}

type section struct {
	Status  domain.TicketStatus
	Tickets []domain.Ticket
	// Actions is set for sections that still accept resolve/discard.
	Actions bool
}

type searchResult struct {
	Query    string
	Status   string
	Owner    string
	Page     *service.TicketPage
	PrevPage int
	NextPage int
}

func (v views) render(c *fiber.Ctx, status int, name string, data *pageData) error {
	tmpl, ok := v[name]
	if !ok {
		return apperrors.NewInternalError(fmt.Errorf("unknown view %q", name))
	}
	if data.Notice == "" {
		data.Notice = notices[c.Query("notice")]
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutFile, data); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("render %s: %w", name, err))
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}
