// Package catalog holds the preconfigured Harvest v2 resources.
//
// Definitions are read from the embedded catalog.yaml and validated when the
// catalog is created. Resources are built on first use and memoized; the
// same *resource.Resource is returned for every later lookup.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/harvest/harvest-cli/internal/resolve"
	"github.com/harvest/harvest-cli/internal/resource"
)

//go:embed catalog.yaml
var catalogYAML []byte

// DefaultBaseURL is used when neither BaseURL nor Subdomain is set.
const DefaultBaseURL = "https://api.harvestapp.com/api/v2/"

// DefaultAppName is sent as User-Agent when Options.AppName is empty.
const DefaultAppName = "harvest-cli"

var (
	ErrUnknownResource   = errors.New("unknown resource")
	ErrInvalidDefinition = errors.New("invalid resource definition")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ActionDef declares a custom action. Path is relative to the endpoint and
// may contain {placeholders}.
type ActionDef struct {
	Name   string         `yaml:"name" json:"name" validate:"required"`
	Path   string         `yaml:"path" json:"path"`
	Method string         `yaml:"method" json:"method,omitempty" validate:"omitempty,oneof=get post patch delete GET POST PATCH DELETE"`
	Body   map[string]any `yaml:"body" json:"body,omitempty"`
}

// PipeDef nests the Target resource under records of the declaring one.
type PipeDef struct {
	Name          string `yaml:"name" json:"name" validate:"required"`
	Target        string `yaml:"target" json:"target" validate:"required"`
	CollectionKey string `yaml:"collection_key" json:"collection_key,omitempty"`
}

// Definition describes one resource.
type Definition struct {
	Name          string      `yaml:"name" json:"name" validate:"required"`
	Endpoint      string      `yaml:"endpoint" json:"endpoint" validate:"required"`
	CollectionKey string      `yaml:"collection_key" json:"collection_key,omitempty"`
	Single        bool        `yaml:"single" json:"single,omitempty"`
	Actions       []ActionDef `yaml:"actions" json:"actions,omitempty" validate:"unique=Name,dive"`
	Pipes         []PipeDef   `yaml:"pipes" json:"pipes,omitempty" validate:"unique=Name,dive"`
}

type definitionFile struct {
	Resources []Definition `yaml:"resources" validate:"required,unique=Name,dive"`
}

// Definitions returns the built-in resource definitions.
func Definitions() ([]Definition, error) {
	return ParseDefinitions(catalogYAML)
}

// ParseDefinitions decodes and validates a catalog document.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := checkDefinitions(file); err != nil {
		return nil, err
	}
	return file.Resources, nil
}

func checkDefinitions(file definitionFile) error {
	if err := validate.Struct(file); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	known := make(map[string]bool, len(file.Resources))
	for _, def := range file.Resources {
		known[def.Name] = true
	}
	for _, def := range file.Resources {
		for _, a := range def.Actions {
			if _, err := resource.NewAction(a.Name, a.Path, a.Method, a.Body); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, def.Name, err)
			}
		}
		for _, p := range def.Pipes {
			if !known[p.Target] {
				return fmt.Errorf("%w: %s: pipe %q targets unknown resource %q", ErrInvalidDefinition, def.Name, p.Name, p.Target)
			}
		}
	}
	return nil
}

// Options carries the account credentials every request is sent with.
type Options struct {
	AccountID string `validate:"required"`
	Token     string `validate:"required"`
	AppName   string
	Subdomain string `validate:"omitempty,hostname_rfc1123"`
	BaseURL   string `validate:"omitempty,url"`
}

// URL returns the API root. BaseURL wins over Subdomain.
func (o Options) URL() string {
	switch {
	case o.BaseURL != "":
		return strings.TrimSuffix(o.BaseURL, "/") + "/"
	case o.Subdomain != "":
		return "https://" + o.Subdomain + ".harvestapp.com/api/v2/"
	default:
		return DefaultBaseURL
	}
}

// Header returns the authentication headers.
func (o Options) Header() http.Header {
	appName := o.AppName
	if appName == "" {
		appName = DefaultAppName
	}
	h := http.Header{}
	h.Set("Harvest-Account-ID", o.AccountID)
	h.Set("Authorization", "Bearer "+o.Token)
	h.Set("User-Agent", appName)
	return h
}

// UnknownResourceError is returned for names missing from the catalog.
type UnknownResourceError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownResourceError) Error() string {
	msg := fmt.Sprintf("unknown resource %q", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *UnknownResourceError) Is(target error) bool {
	return target == ErrUnknownResource
}

// Catalog is safe for concurrent use.
type Catalog struct {
	transport resource.Transport
	opts      Options
	defs      map[string]Definition
	names     []string

	mu    sync.Mutex
	built map[string]*resource.Resource
}

// New creates a catalog of the built-in definitions.
func New(opts Options, transport resource.Transport) (*Catalog, error) {
	defs, err := Definitions()
	if err != nil {
		return nil, err
	}
	return NewWithDefinitions(opts, transport, defs)
}

// NewWithDefinitions creates a catalog of defs.
func NewWithDefinitions(opts Options, transport resource.Transport, defs []Definition) (*Catalog, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid account options: %w", err)
	}
	if err := checkDefinitions(definitionFile{Resources: defs}); err != nil {
		return nil, err
	}

	c := &Catalog{
		transport: transport,
		opts:      opts,
		defs:      make(map[string]Definition, len(defs)),
		built:     make(map[string]*resource.Resource),
	}
	for _, def := range defs {
		c.defs[def.Name] = def
		c.names = append(c.names, def.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Names returns all resource names, sorted.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Definition returns the definition of name.
func (c *Catalog) Definition(name string) (Definition, error) {
	def, ok := c.defs[name]
	if !ok {
		return Definition{}, c.unknown(name)
	}
	return def, nil
}

// Lookup accepts loosely typed names ("Time-Entries") and returns the
// catalog name they refer to.
func (c *Catalog) Lookup(name string) (string, error) {
	if exact, ok := resolve.Exact(name, c.names); ok {
		return exact, nil
	}
	return "", c.unknown(name)
}

// Suggest returns close catalog names for a misspelled one.
func (c *Catalog) Suggest(name string) []string {
	return resolve.Suggest(name, c.names, 3)
}

func (c *Catalog) unknown(name string) error {
	return &UnknownResourceError{Name: name, Suggestions: c.Suggest(name)}
}

// Resource returns the memoized resource called name, building it and the
// resources its pipes reach on first use.
func (c *Catalog) Resource(name string) (*resource.Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.build(name)
}

// build must be called with c.mu held.
func (c *Catalog) build(name string) (*resource.Resource, error) {
	if r, ok := c.built[name]; ok {
		return r, nil
	}
	def, ok := c.defs[name]
	if !ok {
		return nil, c.unknown(name)
	}

	r := resource.New(c.transport, resource.Options{
		BaseURL:       c.opts.URL(),
		Endpoint:      def.Endpoint,
		CollectionKey: def.CollectionKey,
		Header:        c.opts.Header(),
	})
	for _, a := range def.Actions {
		if err := r.AddAction(a.Name, a.Path, a.Method, a.Body); err != nil {
			return nil, err
		}
	}
	// Memoize before resolving pipes so mutually nested resources terminate.
	c.built[name] = r

	for _, p := range def.Pipes {
		child, err := c.build(p.Target)
		if err != nil {
			delete(c.built, name)
			return nil, err
		}
		var opts []resource.PipeOption
		if p.CollectionKey != "" {
			opts = append(opts, resource.WithCollectionKey(p.CollectionKey))
		}
		r.AddPipe(p.Name, child, opts...)
	}
	return r, nil
}

// Company fetches the company record of the authenticated account. The
// endpoint returns a single object, not a list envelope.
func (c *Catalog) Company(ctx context.Context) (any, error) {
	r, err := c.Resource("company")
	if err != nil {
		return nil, err
	}
	return r.Raw(ctx, resource.ListParams{})
}
