//go:build integration

package service

import (
	"testing"

	"github.com/smallbiznis/carepoints/pkg/db/dbtest"
)

func TestConcurrentRedemptionsOfLastUnitOnPostgres(t *testing.T) {
	assertLastUnitRedeemedOnce(t, newFixtureOn(t, dbtest.OpenPostgres(t, fixtureModels...)))
}
