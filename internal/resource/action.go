package resource

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// actionMethods maps accepted verbs to HTTP methods. An empty verb means GET.
var actionMethods = map[string]string{
	"":       http.MethodGet,
	"get":    http.MethodGet,
	"post":   http.MethodPost,
	"patch":  http.MethodPatch,
	"delete": http.MethodDelete,
}

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Action is a named custom request relative to a resource endpoint, such as
// POST invoices/{id}/messages with a fixed event_type.
type Action struct {
	Name     string
	Template string
	Method   string
	// Body is sent with every call; callers cannot override it.
	Body map[string]any
	// Slots are the placeholder names of Template in order of appearance.
	Slots []string
}

// NewAction parses template and validates method.
func NewAction(name, template, method string, body map[string]any) (Action, error) {
	httpMethod, ok := actionMethods[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return Action{}, fmt.Errorf("%w %q for action %q: valid methods are get, post, patch or delete", ErrInvalidMethod, method, name)
	}

	var slots []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		slots = append(slots, m[1])
	}

	return Action{
		Name:     name,
		Template: strings.Trim(template, "/"),
		Method:   httpMethod,
		Body:     maps.Clone(body),
		Slots:    slots,
	}, nil
}

// Expand substitutes args into the template by position. Placeholders
// without a matching argument are left as-is; extra arguments are ignored.
func (a Action) Expand(args ...string) string {
	i := 0
	return placeholderPattern.ReplaceAllStringFunc(a.Template, func(token string) string {
		slot := i
		i++
		if slot >= len(args) {
			return token
		}
		return url.PathEscape(args[slot])
	})
}

// AddAction declares a custom action on the resource. It must be called
// before the resource is shared.
func (r *Resource) AddAction(name, template, method string, body map[string]any) error {
	a, err := NewAction(name, template, method, body)
	if err != nil {
		return err
	}
	r.actions[name] = a
	return nil
}

// Action looks up a declared action.
func (r *Resource) Action(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Invoke runs the named action with positional path arguments.
//
// For GET actions the fixed body is sent as query parameters; DELETE sends
// it only when non-empty.
func (r *Resource) Invoke(ctx context.Context, name string, args ...string) (any, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w %q on %s", ErrUnknownAction, name, r.endpoint)
	}

	path := r.endpoint
	if expanded := a.Expand(args...); expanded != "" {
		path += "/" + expanded
	}

	switch a.Method {
	case http.MethodGet:
		return r.do(ctx, a.Method, path, bodyQuery(a.Body), nil)
	case http.MethodDelete:
		if len(a.Body) == 0 {
			return r.do(ctx, a.Method, path, nil, nil)
		}
	}

	body := maps.Clone(a.Body)
	if body == nil {
		body = map[string]any{}
	}
	return r.do(ctx, a.Method, path, nil, body)
}

func bodyQuery(body map[string]any) url.Values {
	if len(body) == 0 {
		return nil
	}
	q := make(url.Values, len(body))
	for key, value := range body {
		q.Set(key, fmt.Sprint(value))
	}
	return q
}
