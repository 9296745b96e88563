package apperr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/apperr"
)

func TestWrappedErrors_UnwrapToUnderlyingCause(t *testing.T) {
	cause := errors.New("disk full")

	cases := []error{
		&apperr.IndexBuild{Err: cause},
		&apperr.CommitCreation{Err: cause},
		&apperr.ReferenceUpdate{Err: cause},
		&apperr.PostMaintenance{Err: cause},
		&apperr.InvalidRef{Ref: "HEAD~3", Err: cause},
	}

	for _, err := range cases {
		require.ErrorIs(t, err, cause)
		require.NotEmpty(t, err.Error())
	}
}

func TestAlreadyRunning_MessageIncludesPID(t *testing.T) {
	err := &apperr.AlreadyRunning{PID: 4242}
	require.Contains(t, err.Error(), "4242")
}

func TestInvalidPID_MessageIncludesRawValue(t *testing.T) {
	err := &apperr.InvalidPID{Raw: "nope"}
	require.Contains(t, err.Error(), "nope")
}

func TestInvalidPath_MessageIncludesPath(t *testing.T) {
	err := &apperr.InvalidPath{Path: "../outside"}
	require.Contains(t, err.Error(), "../outside")
}

func TestSentinels_AreDistinct(t *testing.T) {
	require.False(t, errors.Is(apperr.ErrNotInitialized, apperr.ErrNotAVcsRepository))
	require.False(t, errors.Is(apperr.ErrDirtyWorkingTree, apperr.ErrNotInitialized))
}
