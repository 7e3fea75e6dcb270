package postgres_test

import (
	"testing"

	"github.com/sagarc03/ephemera/database/internal/registrytest"
)

func TestRepo(t *testing.T) {
	registrytest.Run(t, setupTestRepo)
}
