package formula

import "testing"

func TestVersionString(t *testing.T) {
	tests := []struct {
		v    Version
		want string
	}{
		{Version{Upstream: "1.2.3"}, "1.2.3"},
		{Version{Upstream: "1.2.3", Revision: 1}, "1.2.3_1"},
		{Version{Upstream: "1.2.3", Revision: 1, Rebuild: 2}, "1.2.3_1-2"},
		{Version{Upstream: "1.2.3", Rebuild: 4}, "1.2.3-4"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Version%+v.String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestDependenciesByClass(t *testing.T) {
	r := &Record{
		Dependencies: []Dependency{
			{Name: "a", Classification: Runtime},
			{Name: "b", Classification: Build},
			{Name: "c", Classification: Runtime},
			{Name: "d", Classification: Optional},
		},
	}
	runtime := r.DependenciesByClass(Runtime)
	if len(runtime) != 2 || runtime[0].Name != "a" || runtime[1].Name != "c" {
		t.Errorf("DependenciesByClass(Runtime) = %+v, want [a c]", runtime)
	}
	if got := r.DependenciesByClass(Test); got != nil {
		t.Errorf("DependenciesByClass(Test) = %+v, want nil", got)
	}
}

func TestBottleLookup(t *testing.T) {
	r := &Record{
		Bottles: map[string]BottleEntry{
			"arm64_sonoma": {URL: "https://example.test/a.tar.gz", SHA256: "deadbeef"},
		},
	}
	b, ok := r.Bottle("arm64_sonoma")
	if !ok || b.SHA256 != "deadbeef" {
		t.Errorf("Bottle(arm64_sonoma) = (%+v, %v), want deadbeef", b, ok)
	}
	if _, ok := r.Bottle("x86_64_linux"); ok {
		t.Error("Bottle(x86_64_linux) = ok, want missing")
	}
}

func TestStoreKeyDeterministic(t *testing.T) {
	v := Version{Upstream: "1.2.3", Revision: 1}
	k1 := StoreKey("wget", v, "deadbeef", "arm64_sonoma")
	k2 := StoreKey("wget", v, "deadbeef", "arm64_sonoma")
	if k1 != k2 {
		t.Errorf("StoreKey() not deterministic: %s != %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("StoreKey() length = %d, want 64 (hex sha256)", len(k1))
	}
}

func TestStoreKeyDiffersByInput(t *testing.T) {
	v := Version{Upstream: "1.2.3"}
	base := StoreKey("wget", v, "deadbeef", "arm64_sonoma")

	if StoreKey("curl", v, "deadbeef", "arm64_sonoma") == base {
		t.Error("StoreKey() collided across different names")
	}
	if StoreKey("wget", Version{Upstream: "1.2.4"}, "deadbeef", "arm64_sonoma") == base {
		t.Error("StoreKey() collided across different versions")
	}
	if StoreKey("wget", v, "cafebabe", "arm64_sonoma") == base {
		t.Error("StoreKey() collided across different checksums")
	}
	if StoreKey("wget", v, "deadbeef", "x86_64_linux") == base {
		t.Error("StoreKey() collided across different platform tags")
	}
}

func TestKegOnly(t *testing.T) {
	r := &Record{KegOnly: &KegOnly{Reason: "conflicts with system openssl"}}
	if r.KegOnly == nil || r.KegOnly.Reason == "" {
		t.Error("expected KegOnly reason to be set")
	}
}
