package http

import (
	"errors"
	"net/http"

	"cospese/internal/core"
	applog "cospese/internal/log"
	"cospese/internal/services"
)

func (s *Server) basePage(actor core.Actor, title string) basePage {
	now := s.wf.Now()
	return basePage{
		Title: title,
		Actor: actor,
		Today: FormatToday(now),
		Now:   core.PeriodOf(now),
	}
}

// mustActor returns the actor set by the actor middleware. Routes serving
// expenses are always wrapped by it.
func mustActor(r *http.Request) core.Actor {
	a, _ := actorFrom(r.Context())
	return a
}

// handleIndex sends the user to the current month.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, monthURL(core.PeriodOf(s.wf.Now())), http.StatusFound)
}

// handleList serves the monthly listing. by, when set, fixes the
// attribution filter for the "my" and "divorcee" shortcuts.
func (s *Server) handleList(by core.AttributionFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := mustActor(r)

		f, err := parseMonthlyFilter(r, by)
		if err != nil {
			BadRequestError(err).Write(w)
			return
		}

		items, err := s.wf.ListMonthly(ctx, actor, f)
		if err != nil {
			var verr *core.ValidationError
			if errors.As(err, &verr) {
				BadRequestError(err).Write(w)
				return
			}
			s.structured.LogError(ctx, "Failed to list expenses", err, applog.OpList,
				applog.NewFields().WithActor(actor))
			InternalServerError().Write(w)
			return
		}

		number, err := parsePage(r.URL.Query())
		if err != nil {
			NotFoundError("Invalid page").Write(w)
			return
		}
		page, err := paginate(items, number, s.pageSize)
		if err != nil {
			NotFoundError("Invalid page").Write(w)
			return
		}

		data := newListPage(s.basePage(actor, "Expenses"), f, s.years, items, page, r.URL.Path)
		s.views.render(w, r, http.StatusOK, tmplList, data)
	}
}

// loadExpense resolves the {id} path value within the actor's account and
// writes the error response itself when it fails.
func (s *Server) loadExpense(w http.ResponseWriter, r *http.Request, actor core.Actor) (core.Expense, bool) {
	id, err := parseID(r)
	if err != nil {
		NotFoundError("Expense not found").Write(w)
		return core.Expense{}, false
	}
	e, err := s.wf.GetOne(r.Context(), actor, id)
	if !s.handleLookupError(w, r, actor, id, applog.OpGet, err) {
		return core.Expense{}, false
	}
	return e, true
}

// handleLookupError writes 404 or 500 for err and reports whether the
// caller may go on.
func (s *Server) handleLookupError(w http.ResponseWriter, r *http.Request, actor core.Actor, id int64, op string, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Expense not found").Write(w)
	default:
		fields := applog.NewFields().WithActor(actor)
		fields[applog.FieldExpenseID] = id
		s.structured.LogError(r.Context(), "Failed to load expense", err, op, fields)
		InternalServerError().Write(w)
	}
	return false
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	e, ok := s.loadExpense(w, r, actor)
	if !ok {
		return
	}
	data := detailPage{
		basePage:    s.basePage(actor, "Expense"),
		Expense:     expenseRow{Expense: e, Mine: e.OwnerID == actor.ID, DivorceeShare: e.DivorceeShare()},
		Permissions: s.wf.PermissionsFor(actor, e),
		Owner:       s.userName(r.Context(), e.OwnerID),
		Approver:    s.userName(r.Context(), e.ApprovedBy),
		ListURL:     monthURL(e.Period()),
	}
	s.views.render(w, r, http.StatusOK, tmplDetail, data)
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	data := newFormPage(s.basePage(actor, "New expense"), "/expenses", "Create",
		monthURL(core.PeriodOf(s.wf.Now())), formValues(s.wf.Defaults()), nil)
	s.views.render(w, r, http.StatusOK, tmplForm, data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := mustActor(r)

	if err := r.ParseForm(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid request format").Write(w)
		return
	}

	fields, err := parseExpenseForm(r.PostForm)
	var e core.Expense
	if err == nil {
		e, err = s.wf.Create(ctx, actor, fields)
	}
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.renderForm(w, r, actor, "New expense", "/expenses", "Create",
				monthURL(core.PeriodOf(s.wf.Now())), postedValues(r.PostForm), err)
			return
		}
		s.structured.LogError(ctx, "Failed to create expense", err, applog.OpCreate,
			applog.NewFields().WithActor(actor))
		InternalServerError().Write(w)
		return
	}

	s.structured.LogExpense(ctx, applog.OpCreate, actor, e)
	seeOther(w, r, "/")
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, actor core.Actor, title, action, submit, cancel string, values map[string]string, err error) {
	data := newFormPage(s.basePage(actor, title), action, submit, cancel, values, err)
	s.views.render(w, r, http.StatusUnprocessableEntity, tmplForm, data)
}

// guardedForm loads the expense through check and redirects to its detail
// page when the actor may not proceed. It reports whether the caller should
// render.
func (s *Server) guardedForm(w http.ResponseWriter, r *http.Request, actor core.Actor, op string,
	check func(id int64) (services.Outcome, error)) (core.Expense, bool) {
	id, err := parseID(r)
	if err != nil {
		NotFoundError("Expense not found").Write(w)
		return core.Expense{}, false
	}
	out, err := check(id)
	if !s.handleLookupError(w, r, actor, id, op, err) {
		return core.Expense{}, false
	}
	if out.Denied {
		seeOther(w, r, expenseURL(id))
		return core.Expense{}, false
	}
	return out.Expense, true
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	e, ok := s.guardedForm(w, r, actor, applog.OpEdit, func(id int64) (services.Outcome, error) {
		return s.wf.CanEdit(r.Context(), actor, id)
	})
	if !ok {
		return
	}
	data := newFormPage(s.basePage(actor, "Edit expense"), expenseURL(e.ID)+"/edit", "Save",
		expenseURL(e.ID), formValues(e.ExpenseFields), nil)
	s.views.render(w, r, http.StatusOK, tmplForm, data)
}

// handleEdit applies a posted form. A denied actor is redirected before any
// field error is reported.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := mustActor(r)

	id, err := parseID(r)
	if err != nil {
		NotFoundError("Expense not found").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid request format").Write(w)
		return
	}

	action := expenseURL(id) + "/edit"
	fields, perr := parseExpenseForm(r.PostForm)
	if perr != nil {
		out, err := s.wf.CanEdit(ctx, actor, id)
		if !s.handleLookupError(w, r, actor, id, applog.OpEdit, err) {
			return
		}
		if out.Denied {
			seeOther(w, r, expenseURL(id))
			return
		}
		s.renderForm(w, r, actor, "Edit expense", action, "Save", expenseURL(id), postedValues(r.PostForm), perr)
		return
	}

	out, err := s.wf.Edit(ctx, actor, id, fields)
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		s.renderForm(w, r, actor, "Edit expense", action, "Save", expenseURL(id), postedValues(r.PostForm), err)
		return
	}
	if !s.handleLookupError(w, r, actor, id, applog.OpEdit, err) {
		return
	}
	if !out.Denied {
		s.structured.LogExpense(ctx, applog.OpEdit, actor, out.Expense)
	}
	seeOther(w, r, expenseURL(id))
}

func (s *Server) handleApproveForm(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	e, ok := s.guardedForm(w, r, actor, applog.OpApprove, func(id int64) (services.Outcome, error) {
		return s.wf.CanApprove(r.Context(), actor, id)
	})
	if !ok {
		return
	}
	data := approvePage{
		basePage: s.basePage(actor, "Approve expense"),
		Expense:  expenseRow{Expense: e, Mine: false, DivorceeShare: e.DivorceeShare()},
	}
	s.views.render(w, r, http.StatusOK, tmplApprove, data)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := mustActor(r)

	id, err := parseID(r)
	if err != nil {
		NotFoundError("Expense not found").Write(w)
		return
	}
	out, err := s.wf.Approve(ctx, actor, id)
	if !s.handleLookupError(w, r, actor, id, applog.OpApprove, err) {
		return
	}
	if out.Changed {
		s.structured.LogExpense(ctx, applog.OpApprove, actor, out.Expense)
	}
	seeOther(w, r, expenseURL(id))
}
