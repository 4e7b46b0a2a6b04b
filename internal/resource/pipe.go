package resource

import (
	"fmt"
	"net/url"
)

type pipe struct {
	child         *Resource
	collectionKey string
}

// PipeOption customizes a pipe.
type PipeOption func(*pipe)

// WithCollectionKey overrides the child's envelope key when it is reached
// through this pipe (invoice messages come back as "invoice_messages").
func WithCollectionKey(key string) PipeOption {
	return func(p *pipe) {
		p.collectionKey = key
	}
}

// AddPipe lets child be reached as a nested resource of r, e.g.
// invoices/{id}/messages. It must be called before r is shared.
func (r *Resource) AddPipe(name string, child *Resource, opts ...PipeOption) {
	p := pipe{child: child}
	for _, opt := range opts {
		opt(&p)
	}
	r.pipes[name] = p
}

// PipeLink is a parent record selected for nesting. It is a plain value;
// creating one changes nothing on the parent or the child.
type PipeLink struct {
	parent *Resource
	id     string
}

// Pipe selects the parent record id for a following Child call.
func (r *Resource) Pipe(id string) PipeLink {
	return PipeLink{parent: r, id: id}
}

// ID returns the selected parent record id.
func (l PipeLink) ID() string { return l.id }

// Child returns a copy of the named child resource scoped under
// parentEndpoint/id. The shared child itself is not modified, so the scope
// applies only to requests made through the returned value.
func (l PipeLink) Child(name string) (*Resource, error) {
	p, ok := l.parent.pipes[name]
	if !ok {
		return nil, fmt.Errorf("%w %q on %s", ErrUnknownPipe, name, l.parent.endpoint)
	}

	scoped := p.child.clone()
	scoped.prefix = l.parent.endpoint + "/" + url.PathEscape(l.id)
	if p.collectionKey != "" {
		scoped.collectionKey = p.collectionKey
	}
	return scoped, nil
}
