package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cospese/internal/core"
	applog "cospese/internal/log"
	"cospese/internal/services"
	appweb "cospese/web"
)

// Page templates; each is parsed together with layout.html.
const (
	tmplList    = "list.html"
	tmplDetail  = "detail.html"
	tmplForm    = "form.html"
	tmplApprove = "approve.html"
)

// dateFullLayout renders the heading date, e.g. "Wednesday, 20 March 2024".
const dateFullLayout = "Monday, 2 January 2006"

// FormatToday formats t for page headings.
func FormatToday(t time.Time) string {
	return t.Format(dateFullLayout)
}

var templateFuncs = template.FuncMap{
	"monthName": func(m int) string {
		if m < 1 || m > 12 {
			return strconv.Itoa(m)
		}
		return time.Month(m).String()
	},
	"money": func(m core.Money) string { return m.String() },
	"fieldError": func(errs map[string]string, name string) string {
		return errs[name]
	},
}

type renderer struct {
	pages map[string]*template.Template
}

func loadTemplates(fsys fs.FS) (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template)}
	for _, page := range []string{tmplList, tmplDetail, tmplForm, tmplApprove} {
		t, err := template.New(page).Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.pages[page] = t
	}
	return r, nil
}

func defaultTemplates() (*renderer, error) {
	return loadTemplates(appweb.TemplatesFS)
}

// render executes the page into a buffer first so a template failure still
// yields a clean 500.
func (rd *renderer) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	t, ok := rd.pages[page]
	if !ok {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Unknown template", "template", page)
		InternalServerError().Write(w)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"template", page,
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		InternalServerError().Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// basePage is embedded by every page model.
type basePage struct {
	Title string
	Actor core.Actor
	Today string
	Now   core.Period
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type expenseRow struct {
	core.Expense
	Mine          bool
	DivorceeShare core.Money
}

type listPage struct {
	basePage
	Period        core.Period
	ApprovedLabel string
	ByLabel       string
	Years         []option
	Months        []option
	Approved      []option
	By            []option
	// ApprovedQuery and ByQuery are query fragments keeping the active
	// filters on links that change the other one.
	ApprovedQuery template.URL
	ByQuery       template.URL
	Rows          []expenseRow
	Summary       core.MonthSummary
	Page          Page
	PrevPageURL   string
	NextPageURL   string
	PageLinks     []option
}

func newListPage(base basePage, f core.MonthlyFilter, years []int, items []core.Expense, page Page, path string) listPage {
	lp := listPage{
		basePage:      base,
		Period:        f.Period,
		ApprovedLabel: f.Approved.Label(),
		ByLabel:       f.By.Label(),
		ApprovedQuery: template.URL(url.Values{core.FieldApprovedFilter: {string(f.Approved)}}.Encode()),
		ByQuery:       template.URL(url.Values{core.FieldByFilter: {string(f.By)}}.Encode()),
		Summary:       core.Summarize(f.Period, items),
		Page:          page,
	}
	for _, y := range years {
		lp.Years = append(lp.Years, option{Value: strconv.Itoa(y), Label: strconv.Itoa(y), Selected: y == f.Period.Year})
	}
	for m := 1; m <= 12; m++ {
		lp.Months = append(lp.Months, option{Value: strconv.Itoa(m), Label: time.Month(m).String(), Selected: m == f.Period.Month})
	}
	for _, a := range []core.ApprovedFilter{core.ApprovedAll, core.ApprovedYes, core.ApprovedNo} {
		lp.Approved = append(lp.Approved, option{Value: string(a), Label: a.Label(), Selected: a == f.Approved})
	}
	for _, b := range []core.AttributionFilter{core.ByAll, core.ByMy, core.ByDivorcee} {
		lp.By = append(lp.By, option{Value: string(b), Label: b.Label(), Selected: b == f.By})
	}
	for _, e := range page.Items {
		lp.Rows = append(lp.Rows, expenseRow{Expense: e, Mine: e.OwnerID == base.Actor.ID, DivorceeShare: e.DivorceeShare()})
	}

	if page.Paginated() {
		pageURL := func(n int) string {
			return path + "?" + string(lp.ApprovedQuery) + "&" + string(lp.ByQuery) + "&page=" + strconv.Itoa(n)
		}
		if page.HasPrev() {
			lp.PrevPageURL = pageURL(page.Number - 1)
		}
		if page.HasNext() {
			lp.NextPageURL = pageURL(page.Number + 1)
		}
		for n := 1; n <= page.Count; n++ {
			lp.PageLinks = append(lp.PageLinks, option{Value: pageURL(n), Label: strconv.Itoa(n), Selected: n == page.Number})
		}
	}
	return lp
}

type detailPage struct {
	basePage
	Expense     expenseRow
	Permissions services.Permissions
	Owner       string
	Approver    string
	ListURL     string
}

type formPage struct {
	basePage
	Action string
	Submit string
	Values map[string]string
	Errors map[string]string
	Cancel string
}

func newFormPage(base basePage, action, submit, cancel string, values map[string]string, err error) formPage {
	fp := formPage{basePage: base, Action: action, Submit: submit, Cancel: cancel, Values: values, Errors: map[string]string{}}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			if _, seen := fp.Errors[f.Field]; !seen {
				fp.Errors[f.Field] = f.Err.Error()
			}
		}
	}
	return fp
}

type approvePage struct {
	basePage
	Expense expenseRow
}

func expenseURL(id int64) string {
	return "/expense/" + strconv.FormatInt(id, 10)
}

func monthURL(p core.Period) string {
	return fmt.Sprintf("/expenses/%d/%d", p.Year, p.Month)
}
