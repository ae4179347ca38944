package codec

import (
	"strings"
	"testing"
)

func TestStackDepth(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  int
	}{
		{"empty", nil, 0},
		{"straight", []string{"LOAD_CONST 0", "LOAD_CONST 0", "BINARY_OP +", "RETURN_VALUE"}, 2},
		{"call", []string{"PUSH_NULL", "LOAD_NAME 0", "LOAD_CONST 0", "LOAD_CONST 0", "LOAD_CONST 0", "CALL 3", "RETURN_VALUE"}, 5},
		{"for loop", []string{
			"LOAD_NAME 0",
			"GET_ITER",
			"top:",
			"FOR_ITER done",
			"STORE_NAME 1",
			"JUMP_BACKWARD top",
			"done:",
			"LOAD_CONST 0",
			"RETURN_VALUE",
		}, 2},
		{"short circuit", []string{
			"LOAD_NAME 0",
			"JUMP_IF_FALSE_OR_POP end",
			"LOAD_NAME 1",
			"end:",
			"RETURN_VALUE",
		}, 1},
	}
	for _, tt := range tests {
		code, err := assembleInstructions(tt.lines)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got, err := StackDepth(code)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: depth = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestStackDepthErrors(t *testing.T) {
	tests := []struct {
		lines []string
		want  string
	}{
		{[]string{"POP_TOP", "RETURN_VALUE"}, "underflow"},
		{[]string{"LOAD_CONST 0"}, "falls off the end"},
		{[]string{
			"LOAD_NAME 0",
			"POP_JUMP_IF_TRUE join",
			"LOAD_CONST 0",
			"join:",
			"LOAD_CONST 0",
			"RETURN_VALUE",
		}, "inconsistent stack depth"},
	}
	for _, tt := range tests {
		code, err := assembleInstructions(tt.lines)
		if err != nil {
			t.Fatal(err)
		}
		_, err = StackDepth(code)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%v: err = %v, want %q", tt.lines, err, tt.want)
		}
	}
}
