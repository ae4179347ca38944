package manifest

import (
	"strings"
	"unicode"
)

// ToModuleName converts a dependency name to a module name in snake case.
// "my-lib" -> "my_lib", "MyLib" -> "my_lib", "models" -> "models"
func ToModuleName(s string) string {
	var words []string
	current := ""
	for i, r := range s {
		if r == '-' || r == '_' || r == ' ' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
			continue
		}
		if i > 0 && unicode.IsUpper(r) {
			prev := rune(s[i-1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				words = append(words, current)
				current = ""
			}
		}
		current += string(unicode.ToLower(r))
	}
	if current != "" {
		words = append(words, current)
	}
	return strings.Join(words, "_")
}

// reservedModules lists names a dependency module may not take as its
// root segment: the builtins a program reaches by bare name, and the
// name of the main module.
var reservedModules = map[string]bool{
	"__main__":        true,
	"__builtins__":    true,
	"__build_class__": true,
	"None":            true,
	"True":            true,
	"False":           true,
	"NotImplemented":  true,
	"object":          true,
	"type":            true,
	"int":             true,
	"bool":            true,
	"float":           true,
	"str":             true,
	"tuple":           true,
	"list":            true,
	"dict":            true,
	"property":        true,
	"print":           true,
	"len":             true,
	"repr":            true,
	"isinstance":      true,
	"issubclass":      true,
	"id":              true,
	"abs":             true,
	"getattr":         true,
	"setattr":         true,
	"delattr":         true,
	"hasattr":         true,
	"iter":            true,
	"next":            true,
	"callable":        true,
}

// IsReservedModule reports whether name, or the root segment of a dotted
// name, is reserved. Only the root is checked: "vendor.len" is fine
// because the root is "vendor".
func IsReservedModule(name string) bool {
	root := name
	if idx := strings.Index(name, "."); idx >= 0 {
		root = name[:idx]
	}
	return reservedModules[root]
}

// IsModuleName reports whether name is a dotted sequence of identifiers.
func IsModuleName(name string) bool {
	if name == "" {
		return false
	}
	for _, seg := range strings.Split(name, ".") {
		if seg == "" {
			return false
		}
		for i, r := range seg {
			if !(r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))) {
				return false
			}
		}
	}
	return true
}
