package database

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/school-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "school", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=school sslmode=disable", dsn)
}

func TestConstraintHelpers(t *testing.T) {
	exclusion := fmt.Errorf("insert session: %w", &pq.Error{Code: "23P01"})
	assert.True(t, IsExclusionViolation(exclusion))
	assert.False(t, IsUniqueViolation(exclusion))

	unique := &pq.Error{Code: "23505"}
	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsExclusionViolation(fmt.Errorf("plain")))

	malformed := fmt.Errorf("find user: %w", &pq.Error{Code: "22P02"})
	assert.True(t, IsInvalidText(malformed))
	assert.False(t, IsInvalidText(unique))
}
