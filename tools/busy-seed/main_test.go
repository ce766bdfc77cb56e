package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
)

func TestSamplesDecode(t *testing.T) {
	for name := range samples {
		t.Run(name, func(t *testing.T) {
			raw, err := loadPayload("", name)
			require.NoError(t, err)
			var req struct {
				Users []struct {
					ID   int64                `json:"id"`
					Busy []timeofday.Interval `json:"busy"`
				} `json:"users"`
			}
			require.NoError(t, json.Unmarshal(raw, &req))
			assert.Len(t, req.Users, 2)
		})
	}
}

func TestLoadPayloadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"users":[]}`), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte(`{"users":`), 0o600))

	raw, err := loadPayload(good, "A")
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[]}`, string(raw))

	_, err = loadPayload(bad, "A")
	assert.Error(t, err)

	_, err = loadPayload("", "c")
	assert.Error(t, err)

	_, err = loadPayload("", "b")
	assert.NoError(t, err)
}
