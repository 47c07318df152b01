// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package sqlitevec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesFilter(t *testing.T) {
	attrs := `{"color":"red","size":10,"tags":{"origin":"fr"}}`

	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{"string equality", `.color == "red"`, true},
		{"string mismatch", `.color == "green"`, false},
		{"numeric equality", `.size == 10`, true},
		{"nested path", `.tags.origin == "fr"`, true},
		{"conjunction", `.color == "red" and .size == 10`, true},
		{"conjunction with one miss", `.color == "red" and .size == 11`, false},
		{"missing field", `.weight == 5`, false},
		{"unsupported operator", `.size > 5`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesFilter(attrs, tt.filter))
		})
	}
}

func TestMatchesFilter_EmptyAttributes(t *testing.T) {
	assert.False(t, matchesFilter("", `.color == "red"`))
}

func TestSanitizeIdent(t *testing.T) {
	assert.Equal(t, "my_set_2024", sanitizeIdent("my set:2024"))
	assert.Equal(t, "plain", sanitizeIdent("plain"))
}
