//
//  Copyright © Manetu Inc. All rights reserved.
//

package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyPrint(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		contains string
		wantErr  bool
	}{
		{
			name:     "simple map",
			input:    map[string]interface{}{"key": "value", "number": 42},
			contains: `"key": "value"`,
		},
		{
			name:     "nested structure",
			input:    map[string]interface{}{"outer": map[string]interface{}{"inner": "data"}},
			contains: `    "inner": "data"`,
		},
		{
			name:     "nil input",
			input:    nil,
			contains: "null",
		},
		{
			name:    "unmarshalable input",
			input:   make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := PrettyPrint(&buf, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, buf.String())
				return
			}
			assert.NoError(t, err)
			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}
