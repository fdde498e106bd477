package script

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
)

const (
	namespaceAsset = "asset"
	namespaceStyle = "style"

	assetFilter = `\.(png|jpe?g|gif|webp|svg|woff2?|eot|ttf)$`
	styleFilter = `\.(css|scss|sass|less)$`

	// resolving marks nested Resolve calls so our own callbacks skip them.
	resolving = "assetbuilder:resolving"
)

// collector records what the plugins saw during one build. esbuild runs
// callbacks concurrently.
type collector struct {
	mu     sync.Mutex
	styles map[string]struct{}
	err    error
}

func newCollector() *collector {
	return &collector{styles: make(map[string]struct{})}
}

func (c *collector) addStyle(path string) {
	c.mu.Lock()
	c.styles[path] = struct{}{}
	c.mu.Unlock()
}

// fail keeps the first classified error so it can be returned instead of
// esbuild's flattened message.
func (c *collector) fail(err error) error {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	return err
}

func (c *collector) firstError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// aliasPlugin rewrites "@..." specifiers and lets esbuild resolve the result
// so extension probing and index files keep working.
func aliasPlugin(table *alias.Table) api.Plugin {
	return api.Plugin{
		Name: "alias",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^@`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.PluginData == resolving {
					return api.OnResolveResult{}, nil
				}
				target, ok := table.Resolve(args.Path)
				if !ok {
					return api.OnResolveResult{}, nil
				}
				res := build.Resolve(target, api.ResolveOptions{
					Kind:       args.Kind,
					ResolveDir: args.ResolveDir,
					Importer:   args.Importer,
				})
				if len(res.Errors) > 0 {
					return api.OnResolveResult{Errors: res.Errors}, nil
				}
				return api.OnResolveResult{
					Path:      res.Path,
					Namespace: res.Namespace,
					External:  res.External,
				}, nil
			})
		},
	}
}

// assetPlugin turns image, sprite and font imports into modules whose default
// export is the routed URL. A missing sprite yields an empty string.
func assetPlugin(table *alias.Table, router *assets.Router, col *collector) api.Plugin {
	return api.Plugin{
		Name: "assets",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: assetFilter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				path, ok := localPath(table, args)
				if !ok {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{Path: path, Namespace: namespaceAsset}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: namespaceAsset}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				res, err := router.Route(args.Path)
				if err != nil {
					if assets.IsNotFound(err) && router.IsSprite(args.Path) {
						return jsModule(""), nil
					}
					return api.OnLoadResult{}, col.fail(err)
				}
				return jsModule(res.URL), nil
			})
		},
	}
}

// styleCollector replaces stylesheet imports with empty modules and queues the
// files for the style stage.
func styleCollector(table *alias.Table, col *collector) api.Plugin {
	return api.Plugin{
		Name: "styles",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: styleFilter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.PluginData == resolving {
					return api.OnResolveResult{}, nil
				}
				path, ok := localPath(table, args)
				if !ok {
					// Package stylesheets: let esbuild find the file first.
					res := build.Resolve(args.Path, api.ResolveOptions{
						Kind:       args.Kind,
						ResolveDir: args.ResolveDir,
						Importer:   args.Importer,
						PluginData: resolving,
					})
					if len(res.Errors) > 0 {
						return api.OnResolveResult{Errors: res.Errors}, nil
					}
					path = res.Path
				}
				return api.OnResolveResult{Path: path, Namespace: namespaceStyle}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: namespaceStyle}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				col.addStyle(args.Path)
				return api.OnLoadResult{Contents: strPtr(""), Loader: api.LoaderJS}, nil
			})
		},
	}
}

// localPath resolves aliased and relative specifiers to absolute paths.
func localPath(table *alias.Table, args api.OnResolveArgs) (string, bool) {
	if p, ok := table.Resolve(args.Path); ok {
		return p, true
	}
	switch {
	case filepath.IsAbs(args.Path):
		return filepath.Clean(args.Path), true
	case strings.HasPrefix(args.Path, "./"), strings.HasPrefix(args.Path, "../"):
		return filepath.Join(args.ResolveDir, filepath.FromSlash(args.Path)), true
	}
	return "", false
}

func jsModule(url string) api.OnLoadResult {
	return api.OnLoadResult{
		Contents: strPtr(fmt.Sprintf("export default %s;\n", strconv.Quote(url))),
		Loader:   api.LoaderJS,
	}
}

func strPtr(s string) *string { return &s }
