// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"testing"

	"go.uber.org/goleak"
)

// Concurrent fetches must not outlive FetchRecords.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
