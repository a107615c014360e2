// Package resource resolves images, HTML documents and file URLs referenced by survey
// configuration. Bundles are searched in order and the first hit wins.
package resource

import (
	"io/fs"
	"net/url"
	"path"
	"strings"
)

// Image is a resolved image resource.
type Image struct {
	Name   string
	Bundle string
	Path   string
}

// Resolver is consulted synchronously by the step transformer.
// A miss is not an error: the step simply omits the field.
type Resolver interface {
	ImageNamed(name string) (*Image, bool)
	HTMLNamed(name string) (string, bool)
	URLNamed(name, ext string) (*url.URL, bool)
}

// Bundle is one named file tree.
type Bundle struct {
	Name string
	FS   fs.FS
}

// Chain searches bundles in order: app override, main bundle, framework bundle.
type Chain struct {
	bundles []Bundle
}

// NewChain creates a resolver over the given bundles, highest priority first.
func NewChain(bundles ...Bundle) *Chain {
	return &Chain{bundles: bundles}
}

var imageExts = []string{"", ".png", ".jpg", ".jpeg", ".pdf", ".svg"}

// ImageNamed finds an image by name, trying common extensions when the name has none.
func (c *Chain) ImageNamed(name string) (*Image, bool) {
	if name == "" {
		return nil, false
	}
	exts := imageExts
	if path.Ext(name) != "" {
		exts = []string{""}
	}
	for _, b := range c.bundles {
		for _, ext := range exts {
			p := clean(name + ext)
			if exists(b.FS, p) {
				return &Image{Name: name, Bundle: b.Name, Path: p}, true
			}
		}
	}
	return nil, false
}

// HTMLNamed returns the contents of an HTML document.
func (c *Chain) HTMLNamed(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	p := clean(name)
	if path.Ext(p) == "" {
		p += ".html"
	}
	for _, b := range c.bundles {
		data, err := fs.ReadFile(b.FS, p)
		if err == nil {
			return string(data), true
		}
	}
	return "", false
}

// URLNamed returns a bundle-relative URL for name.ext.
func (c *Chain) URLNamed(name, ext string) (*url.URL, bool) {
	if name == "" {
		return nil, false
	}
	p := clean(name)
	if ext != "" && !strings.HasSuffix(p, "."+ext) {
		p += "." + ext
	}
	for _, b := range c.bundles {
		if exists(b.FS, p) {
			return &url.URL{Scheme: "bundle", Host: b.Name, Path: "/" + p}, true
		}
	}
	return nil, false
}

func exists(fsys fs.FS, p string) bool {
	if fsys == nil {
		return false
	}
	info, err := fs.Stat(fsys, p)
	return err == nil && !info.IsDir()
}

func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Nop resolves nothing.
type Nop struct{}

func (Nop) ImageNamed(string) (*Image, bool) { return nil, false }

func (Nop) HTMLNamed(string) (string, bool) { return "", false }

func (Nop) URLNamed(string, string) (*url.URL, bool) { return nil, false }
