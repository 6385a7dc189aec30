// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package postgres

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/pkg/errutil"
)

// fakeMigrate implements migrateIface for unit tests.
type fakeMigrate struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	calls      []string
}

func (f *fakeMigrate) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrate) Down() error {
	f.calls = append(f.calls, "down")
	return f.downErr
}

func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrate) Close() (error, error) {
	f.calls = append(f.calls, "close")
	return nil, nil
}

func TestMigrator_Up(t *testing.T) {
	tests := []struct {
		name     string
		upErr    error
		wantErr  bool
		wantCode string
	}{
		{name: "success"},
		{name: "no change is not an error", upErr: migrate.ErrNoChange},
		{name: "failure", upErr: errors.New("boom"), wantErr: true, wantCode: "MIGRATION_UP_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeMigrate{upErr: tt.upErr}
			m := &Migrator{m: fake}

			err := m.Up()
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, []string{"up"}, fake.calls)
		})
	}
}

func TestMigrator_Down(t *testing.T) {
	fake := &fakeMigrate{downErr: migrate.ErrNoChange}
	m := &Migrator{m: fake}
	require.NoError(t, m.Down())

	fake = &fakeMigrate{downErr: errors.New("boom")}
	m = &Migrator{m: fake}
	errutil.AssertErrorCode(t, m.Down(), "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{version: 3, dirty: true}}
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.True(t, dirty)

	m = &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	version, dirty, err = m.Version()
	require.NoError(t, err, "no applied migrations is not an error")
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}

func TestMigrator_Close(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}
	require.NoError(t, m.Close())
	assert.Contains(t, fake.calls, "close")
}

func TestNewMigrator_ConvertsScheme(t *testing.T) {
	// An unreachable host still exercises URL parsing; the pgx5 driver
	// rejects nothing at construction for a well-formed URL but fails on
	// a bogus scheme.
	_, err := NewMigrator("bogus://nowhere")
	require.Error(t, err)
	if oopsErr, ok := oops.AsOops(err); ok {
		assert.Equal(t, "MIGRATION_INIT_FAILED", oopsErr.Code())
	}
}
