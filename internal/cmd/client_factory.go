package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/harvest/harvest-cli/internal/api"
	"github.com/harvest/harvest-cli/internal/catalog"
	"github.com/harvest/harvest-cli/internal/config"
	"github.com/harvest/harvest-cli/internal/dryrun"
	"github.com/harvest/harvest-cli/internal/iocontext"
	"github.com/harvest/harvest-cli/internal/resource"
)

type clientFactory struct {
	timeout time.Duration
	profile string
}

func newClientFactory() *clientFactory {
	return &clientFactory{timeout: flags.Timeout, profile: flags.Profile}
}

func (f *clientFactory) client() *api.Client {
	client := api.New()
	if f.timeout > 0 {
		client.HTTP.Timeout = f.timeout
	}
	return client
}

// transport wraps the client in a previewing transport under --dry-run.
func (f *clientFactory) transport(ctx context.Context) resource.Transport {
	client := f.client()
	if !dryrun.IsEnabled(ctx) {
		return client
	}
	return &dryrun.Transport{Next: client, Out: iocontext.FromContext(ctx).ErrOut}
}

// catalog loads the account credentials and binds the resource catalog to
// a fresh transport.
func (f *clientFactory) catalog(ctx context.Context) (*catalog.Catalog, error) {
	account, err := config.LoadAccount(f.profile)
	if err != nil {
		return nil, err
	}
	return catalog.New(catalogOptions(account), f.transport(ctx))
}

func catalogOptions(account config.Account) catalog.Options {
	appName := account.AppName
	if appName == "" {
		appName = fmt.Sprintf("%s/%s", catalog.DefaultAppName, version)
	}
	return catalog.Options{
		AccountID: account.AccountID,
		Token:     account.Token,
		AppName:   appName,
		Subdomain: account.Subdomain,
		BaseURL:   account.BaseURL,
	}
}

// target resolves a resource name, optionally nested under a --via parent.
func target(cat *catalog.Catalog, name string, v *via) (*resource.Resource, catalog.Definition, error) {
	resolved, err := cat.Lookup(name)
	if err != nil {
		return nil, catalog.Definition{}, err
	}
	def, err := cat.Definition(resolved)
	if err != nil {
		return nil, catalog.Definition{}, err
	}
	if v == nil {
		r, err := cat.Resource(resolved)
		return r, def, err
	}

	parentName, err := cat.Lookup(v.Parent)
	if err != nil {
		return nil, catalog.Definition{}, err
	}
	parent, err := cat.Resource(parentName)
	if err != nil {
		return nil, catalog.Definition{}, err
	}
	child, err := parent.Pipe(v.ID).Child(resolved)
	return child, def, err
}
