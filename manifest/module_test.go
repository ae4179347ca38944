package manifest

import "testing"

func TestToModuleName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"models", "models"},
		{"my-app", "my_app"},
		{"my_app", "my_app"},
		{"myApp", "my_app"},
		{"MyApp", "my_app"},
		{"UPPER", "upper"},
		{"a", "a"},
		{"", ""},
		{"lib2Go", "lib2_go"},
		{"foo-bar-baz", "foo_bar_baz"},
		{"_leading", "leading"},
	}

	for _, tc := range tests {
		got := ToModuleName(tc.input)
		if got != tc.want {
			t.Errorf("ToModuleName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestIsReservedModule(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"print", true},
		{"object", true},
		{"str", true},
		{"__main__", true},
		{"None", true},
		{"mylib", false},
		{"helpers", false},
		// Dotted: only root checked
		{"vendor.len", false},
		{"len.extra", true},
	}

	for _, tc := range tests {
		got := IsReservedModule(tc.name)
		if got != tc.want {
			t.Errorf("IsReservedModule(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsModuleName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"helpers", true},
		{"vendor.util", true},
		{"_private", true},
		{"v2", true},
		{"", false},
		{"2fast", false},
		{"my-lib", false},
		{"a..b", false},
		{"trailing.", false},
	}
	for _, tc := range tests {
		if got := IsModuleName(tc.name); got != tc.want {
			t.Errorf("IsModuleName(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
