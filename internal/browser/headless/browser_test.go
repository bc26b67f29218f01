package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	b := New(Config{}, nil)
	defer func() {
		if err := b.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}()
	if b.cfg.NavigationTimeout != 45*time.Second {
		t.Fatalf("expected default nav timeout, got %v", b.cfg.NavigationTimeout)
	}
	if b.tab != nil {
		t.Fatal("expected tab to be allocated lazily")
	}

	custom := New(Config{NavigationTimeout: time.Second}, nil)
	defer func() { _ = custom.Close() }()
	if custom.cfg.NavigationTimeout != time.Second {
		t.Fatalf("expected override to be used, got %v", custom.cfg.NavigationTimeout)
	}
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{
		"X-Multi":  {"a", "b"},
		"X-Single": {"c"},
		"X-Empty":  {},
	})
	switch v := netHeaders["X-Multi"].(type) {
	case []string:
		if len(v) != 2 {
			t.Fatalf("expected two entries, got %v", v)
		}
	default:
		t.Fatalf("expected []string, got %T", v)
	}
	if netHeaders["X-Single"] != "c" {
		t.Fatalf("expected single value, got %v", netHeaders["X-Single"])
	}
	if _, ok := netHeaders["X-Empty"]; ok {
		t.Fatal("expected empty header to be dropped")
	}
}

func TestResponseMetaCapture(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 500, URL: "https://cdn.test/img.png"},
	})
	if status, _ := meta.snapshot(); status != 0 {
		t.Fatalf("expected non-document responses to be ignored, got %d", status)
	}

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://shop.test/products/gone"},
	})
	status, url := meta.snapshot()
	if status != 404 || url != "https://shop.test/products/gone" {
		t.Fatalf("unexpected snapshot status=%d url=%s", status, url)
	}

	meta.reset()
	if status, url := meta.snapshot(); status != 0 || url != "" {
		t.Fatalf("expected reset snapshot, got status=%d url=%s", status, url)
	}
}
