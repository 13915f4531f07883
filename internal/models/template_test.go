package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateRender(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		vars     map[string]string
		expected string
	}{
		{
			name:     "single placeholder",
			body:     "Halo {{name}}!",
			vars:     map[string]string{"name": "Budi"},
			expected: "Halo Budi!",
		},
		{
			name:     "repeated placeholder",
			body:     "{{name}} {{name}}",
			vars:     map[string]string{"name": "Budi"},
			expected: "Budi Budi",
		},
		{
			name:     "unknown placeholder left intact",
			body:     "Halo {{name}}, order {{order_id}}",
			vars:     map[string]string{"name": "Budi"},
			expected: "Halo Budi, order {{order_id}}",
		},
		{
			name:     "no variables",
			body:     "Halo {{name}}",
			vars:     nil,
			expected: "Halo {{name}}",
		},
		{
			name:     "no placeholders",
			body:     "plain message",
			vars:     map[string]string{"name": "Budi"},
			expected: "plain message",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := NewTemplate("user-1", "greeting", tc.body)
			assert.Equal(t, tc.expected, tmpl.Render(tc.vars))
		})
	}
}

func TestTemplateVariables(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected []string
	}{
		{
			name:     "ordered and deduplicated",
			body:     "{{name}} bought {{item}}, thanks {{name}}",
			expected: []string{"name", "item"},
		},
		{
			name:     "whitespace trimmed",
			body:     "Halo {{ name }}",
			expected: []string{"name"},
		},
		{
			name:     "unterminated placeholder ignored",
			body:     "Halo {{name",
			expected: nil,
		},
		{
			name:     "empty placeholder ignored",
			body:     "Halo {{}}",
			expected: nil,
		},
		{
			name:     "none",
			body:     "plain",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := &Template{Body: tc.body}
			assert.Equal(t, tc.expected, tmpl.Variables())
		})
	}
}

func TestNewTemplate(t *testing.T) {
	tmpl := NewTemplate("user-1", "promo", "Diskon {{percent}}%")

	assert.NotEmpty(t, tmpl.ID)
	assert.Equal(t, "user-1", tmpl.UserID)
	assert.Equal(t, "promo", tmpl.Name)
	assert.Equal(t, "Diskon {{percent}}%", tmpl.Body)
	assert.Equal(t, TemplateActive, tmpl.Status)
	assert.Equal(t, tmpl.CreatedAt, tmpl.UpdatedAt)
	assert.Greater(t, tmpl.CreatedAt, int64(0))
}
