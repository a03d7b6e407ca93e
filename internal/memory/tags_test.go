package memory

import (
	"testing"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

func TestNormalizeTags_Canonical(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"simple", "alpha,beta", "alpha,beta"},
		{"sorted", "beta,alpha", "alpha,beta"},
		{"case folded", "Beta , Alpha", "alpha,beta"},
		{"spaces to underscores", "linear algebra, math", "linear_algebra,math"},
		{"deduplicated", "a,b,a,B", "a,b"},
		{"empty segments skipped", ",alpha,,beta,", "alpha,beta"},
		{"digits and hyphens", "topic-1,v2_final", "topic-1,v2_final"},
		{"single", "  Solo  ", "solo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, err := NormalizeTags(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeTags(%q): %v", tt.raw, err)
			}
			if tags.Key() != tt.want {
				t.Errorf("NormalizeTags(%q) = %q, want %q", tt.raw, tags.Key(), tt.want)
			}
		})
	}
}

func TestNormalizeTags_Invalid(t *testing.T) {
	for _, raw := range []string{"", " , ,", "ok,b@d", "tag!", "café"} {
		if _, err := NormalizeTags(raw); err == nil {
			t.Errorf("NormalizeTags(%q): expected error", raw)
		} else if mnemoErrors.AsCode(err) != mnemoErrors.CodeInvalidTag {
			t.Errorf("NormalizeTags(%q): expected INVALID_TAG, got %v", raw, err)
		}
	}
}

func TestNormalizeTags_Idempotent(t *testing.T) {
	inputs := []string{"Beta , Alpha", "a,b,c", "one two, three", "z,y,x,z"}
	for _, raw := range inputs {
		once, err := NormalizeTags(raw)
		if err != nil {
			t.Fatal(err)
		}
		twice, err := NormalizeTags(once.Key())
		if err != nil {
			t.Fatal(err)
		}
		if !once.Equal(twice) {
			t.Errorf("normalize not idempotent for %q: %q != %q", raw, once.Key(), twice.Key())
		}
	}
}

func TestNormalizeTags_OrderInsensitive(t *testing.T) {
	perms := []string{
		"alpha,beta,gamma",
		"gamma,alpha,beta",
		"beta,gamma,alpha",
		"gamma,beta,alpha",
	}
	want := "alpha,beta,gamma"
	for _, p := range perms {
		tags, err := NormalizeTags(p)
		if err != nil {
			t.Fatal(err)
		}
		if tags.Key() != want {
			t.Errorf("NormalizeTags(%q) = %q, want %q", p, tags.Key(), want)
		}
	}
}

func TestTagSet_ContainsAll(t *testing.T) {
	set, _ := NormalizeTags("alpha,beta,gamma")

	sub, _ := NormalizeTags("beta")
	if !set.ContainsAll(sub) {
		t.Error("expected {alpha,beta,gamma} to contain {beta}")
	}

	other, _ := NormalizeTags("beta,delta")
	if set.ContainsAll(other) {
		t.Error("expected {alpha,beta,gamma} not to contain {beta,delta}")
	}

	// Empty search matches everything.
	if !set.ContainsAll(TagSet{}) {
		t.Error("empty subset should match")
	}
}

func TestTagSet_Clone(t *testing.T) {
	set, _ := NormalizeTags("a,b")
	clone := set.Clone()
	clone[0] = "zzz"
	if set[0] != "a" {
		t.Error("clone should not share backing array")
	}
}

func TestParseKey(t *testing.T) {
	set, err := ParseKey("alpha,beta")
	if err != nil {
		t.Fatal(err)
	}
	if set.Key() != "alpha,beta" {
		t.Errorf("unexpected key %q", set.Key())
	}
}
