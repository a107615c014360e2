package resource

import (
	"testing"
	"testing/fstest"
)

func TestChainFirstHitWins(t *testing.T) {
	override := fstest.MapFS{
		"logo.png":     {Data: []byte("override")},
		"consent.html": {Data: []byte("<p>override</p>")},
	}
	main := fstest.MapFS{
		"logo.png":     {Data: []byte("main")},
		"welcome.html": {Data: []byte("<p>main</p>")},
		"terms.pdf":    {Data: []byte("%PDF")},
	}
	framework := fstest.MapFS{
		"consent.html":    {Data: []byte("<p>framework</p>")},
		"icons/check.svg": {Data: []byte("<svg/>")},
	}

	chain := NewChain(
		Bundle{Name: "app", FS: override},
		Bundle{Name: "main", FS: main},
		Bundle{Name: "framework", FS: framework},
	)

	t.Run("image resolved from highest priority bundle", func(t *testing.T) {
		img, ok := chain.ImageNamed("logo")
		if !ok {
			t.Fatal("expected logo to resolve")
		}
		if img.Bundle != "app" || img.Path != "logo.png" {
			t.Errorf("got %+v, want app/logo.png", img)
		}
	})

	t.Run("image in nested path of last bundle", func(t *testing.T) {
		img, ok := chain.ImageNamed("icons/check")
		if !ok || img.Bundle != "framework" {
			t.Errorf("got %+v, %v; want framework hit", img, ok)
		}
	})

	t.Run("html override", func(t *testing.T) {
		html, ok := chain.HTMLNamed("consent")
		if !ok || html != "<p>override</p>" {
			t.Errorf("HTMLNamed(consent) = %q, %v", html, ok)
		}
		html, ok = chain.HTMLNamed("welcome.html")
		if !ok || html != "<p>main</p>" {
			t.Errorf("HTMLNamed(welcome.html) = %q, %v", html, ok)
		}
	})

	t.Run("url", func(t *testing.T) {
		u, ok := chain.URLNamed("terms", "pdf")
		if !ok {
			t.Fatal("expected terms.pdf to resolve")
		}
		if u.String() != "bundle://main/terms.pdf" {
			t.Errorf("URLNamed = %s", u)
		}
	})

	t.Run("all miss", func(t *testing.T) {
		if _, ok := chain.ImageNamed("missing"); ok {
			t.Error("missing image resolved")
		}
		if _, ok := chain.HTMLNamed("missing"); ok {
			t.Error("missing html resolved")
		}
		if _, ok := chain.URLNamed("", "pdf"); ok {
			t.Error("empty name resolved")
		}
	})
}

func TestNop(t *testing.T) {
	var r Resolver = Nop{}
	if _, ok := r.ImageNamed("x"); ok {
		t.Error("Nop resolved an image")
	}
}
