package http

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"cospese/internal/core"
)

// ResponseBuilder provides a fluent API for writing small HTML responses
// that do not need a page template.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) BodyString(content string) *ResponseBuilder {
	b.body = []byte(content)
	return b
}

// BodyHTML sets an HTML body; the caller is responsible for escaping.
func (b *ResponseBuilder) BodyHTML(html string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

// ValidationErrorResponse lists the offending fields of err. Errors that are
// not a *core.ValidationError are reported as a single message.
func ValidationErrorResponse(statusCode int, err error) *ResponseBuilder {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return ErrorResponse(statusCode, err.Error())
	}
	var sb strings.Builder
	sb.WriteString(`<div class="error"><p>Invalid input</p><ul>`)
	for _, f := range verr.Fields {
		sb.WriteString(`<li><code>`)
		sb.WriteString(template.HTMLEscapeString(f.Field))
		sb.WriteString(`</code>: `)
		sb.WriteString(template.HTMLEscapeString(f.Err.Error()))
		sb.WriteString(`</li>`)
	}
	sb.WriteString(`</ul></div>`)
	return NewResponse().Status(statusCode).BodyHTML(sb.String())
}

func BadRequestError(err error) *ResponseBuilder {
	return ValidationErrorResponse(http.StatusBadRequest, err)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError never exposes the underlying error.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Something went wrong, please retry later")
}

// seeOther redirects with 303 so the browser follows with a GET.
func seeOther(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}
