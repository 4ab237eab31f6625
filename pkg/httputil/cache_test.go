package httputil

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/cache"
)

func TestJSONCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewJSONCache(cache.NewMemoryCache(), time.Hour)

	type page struct {
		Name     string   `json:"name"`
		Versions []string `json:"versions"`
	}
	want := page{Name: "requests", Versions: []string{"2.19.1", "2.20.0"}}
	if err := c.Set(ctx, "requests", want); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var got page
	ok, err := c.Get(ctx, "requests", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONCache_Miss(t *testing.T) {
	c := NewJSONCache(cache.NewMemoryCache(), 0)
	var result string
	ok, err := c.Get(context.Background(), "missing", &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("Get() returned true for missing key")
	}
}

func TestJSONCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	mem.Set(ctx, "k", []byte("{not json"), 0)

	var v map[string]any
	ok, err := NewJSONCache(mem, 0).Get(ctx, "k", &v)
	if ok || err != nil {
		t.Errorf("Get() = %v, %v; want miss", ok, err)
	}
	if mem.Len() != 0 {
		t.Error("corrupt entry was not deleted")
	}
}

func TestJSONCache_Namespace(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	c := NewJSONCache(mem, time.Minute)

	c.Namespace("simple:").Set(ctx, "requests", "a")
	c.Namespace("release:").Namespace("pypi:").Set(ctx, "requests", "b")

	for key, want := range map[string]string{
		"simple:requests":       `"a"`,
		"release:pypi:requests": `"b"`,
	} {
		got, ok, _ := mem.Get(ctx, key)
		if !ok || string(got) != want {
			t.Errorf("backend[%q] = %s, %v; want %s", key, got, ok, want)
		}
	}
	if c.Namespace("x:").TTL() != time.Minute {
		t.Error("Namespace should keep the TTL")
	}
}
