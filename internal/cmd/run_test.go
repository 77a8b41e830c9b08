package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/conductor/internal/contract"
)

func TestCompletionError(t *testing.T) {
	tests := []struct {
		status  contract.GraphStatus
		wantErr bool
	}{
		{contract.GraphStatusSucceeded, false},
		{contract.GraphStatusPartial, false},
		{contract.GraphStatusFailed, true},
		{contract.GraphStatusCancelled, true},
		{contract.GraphStatusAborted, true},
	}

	for _, tt := range tests {
		err := completionError(&contract.GraphResult{GraphID: "g1", Status: tt.status})
		if tt.wantErr {
			assert.Error(t, err, string(tt.status))
		} else {
			assert.NoError(t, err, string(tt.status))
		}
	}
}
