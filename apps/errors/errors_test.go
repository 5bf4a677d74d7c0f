// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestVerbose(t *testing.T) {
	tests := []struct {
		desc string
		err  error
		want []string
	}{
		{
			desc: "unsupported storage",
			err:  &UnsupportedStorageError{Kind: "localStorage"},
			want: []string{`"localStorage"`, "Kind"},
		},
		{
			desc: "wrapped configuration error",
			err:  fmt.Errorf("opening cache: %w", &ConfigurationError{Field: "clientID", Reason: "empty"}),
			want: []string{"clientID", "Reason"},
		},
		{
			desc: "plain error",
			err:  New("boom"),
			want: []string{"boom"},
		},
	}

	for _, test := range tests {
		got := Verbose(test.err)
		for _, w := range test.want {
			if !strings.Contains(got, w) {
				t.Errorf("TestVerbose(%s): got %q, want it to contain %q", test.desc, got, w)
			}
		}
	}
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("get: %w", &UnimplementedError{Op: "Keys"})
	var ue *UnimplementedError
	if !As(err, &ue) {
		t.Fatalf("TestAs: expected UnimplementedError in %v", err)
	}
	if ue.Op != "Keys" {
		t.Errorf("TestAs: got Op %q, want %q", ue.Op, "Keys")
	}
}
