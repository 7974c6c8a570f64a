// Package errors_test provides unit tests for the AppError type, factory
// functions, and error-chain helpers defined in pkg/errors/errors.go.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"quantum not found", errors.ErrCodeQuantumNotFound, "quantum r50_12_-3 not found"},
		{"invalid param", errors.CodeInvalidParam, "latitude must be within [-90, 90]"},
		{"rate limit", errors.CodeRateLimit, "too many requests"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail, "Detail should be empty for bare New()")
			assert.Nil(t, ae.Cause, "Cause should be nil for bare New()")
		})
	}
}

func TestNew_StackIsPopulated(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeInternal, "test")
	require.NotNil(t, ae)
	assert.NotEmpty(t, ae.Stack)
}

func TestNewf_FormatsMessage(t *testing.T) {
	t.Parallel()

	ae := errors.Newf(errors.ErrCodeProfileUnknown, "profile %q not registered", "silicon_fab_v3")
	require.NotNil(t, ae)
	assert.Equal(t, `profile "silicon_fab_v3" not registered`, ae.Message)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	result := errors.Wrap(nil, errors.CodeInternal, "should not matter")
	assert.Nil(t, result)
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection refused")
	mid := errors.Wrap(root, errors.ErrCodeDatabaseError, "claim query failed")
	top := errors.Wrap(mid, errors.ErrCodeQueueUnavailable, "queue unreachable")

	require.NotNil(t, top)
	assert.True(t, stderrors.Is(top, root), "errors.Is should traverse the full chain")

	var ae *errors.AppError
	require.True(t, stderrors.As(top, &ae))
	assert.Equal(t, errors.ErrCodeQueueUnavailable, ae.Code)
}

func TestWrap_UnknownCodePreservesOriginal(t *testing.T) {
	t.Parallel()

	orig := errors.New(errors.ErrCodeProviderTimeout, "usgs timed out")
	wrapped := errors.Wrap(orig, errors.CodeUnknown, "fetch failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.ErrCodeProviderTimeout, wrapped.Code,
		"CodeUnknown should adopt the wrapped AppError's code")
}

func TestError_FormatIncludesDetail(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeRegionInvalid, "region too large").
		WithDetail("radius_meters=2500000")

	msg := ae.Error()
	assert.True(t, strings.HasPrefix(msg, "[CFG_004]"), "got %q", msg)
	assert.Contains(t, msg, "region too large")
	assert.Contains(t, msg, "radius_meters=2500000")
}

func TestError_FormatWithoutDetail(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeNotFound, "nothing here")
	assert.Equal(t, "[COMMON_003] nothing here", ae.Error())
}

func TestWithDetail_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	orig := errors.New(errors.CodeInternal, "base")
	clone := orig.WithDetail("extra")

	assert.Empty(t, orig.Detail)
	assert.Equal(t, "extra", clone.Detail)
	assert.Equal(t, orig.Code, clone.Code)
}

func TestWithDetail_NilReceiver(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("ignored"))
}

func TestWithCause_AttachesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("dial tcp: timeout")
	ae := errors.New(errors.ErrCodeProviderUnavailable, "osm down").WithCause(cause)

	assert.True(t, stderrors.Is(ae, cause))
}

func TestIsCode_FindsCodeAnywhereInChain(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeProviderTimeout, "slow provider")
	outer := fmt.Errorf("attempt 3: %w", inner)

	assert.True(t, errors.IsCode(outer, errors.ErrCodeProviderTimeout))
	assert.False(t, errors.IsCode(outer, errors.ErrCodeJobNotFound))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeJobNotFound))
}

func TestIsRetryable_ProviderErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"provider unavailable", errors.Provider("osm", stderrors.New("boom")), true},
		{"provider timeout", errors.ProviderTimeout("usgs", stderrors.New("deadline")), true},
		{"wrapped provider error", fmt.Errorf("job: %w", errors.Provider("census", nil)), true},
		{"configuration error", errors.Configuration("bad resolution"), false},
		{"permanent failure", errors.PermanentFailure("budget exhausted", nil), false},
		{"plain stdlib error", stderrors.New("whatever"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, errors.IsRetryable(tc.err))
		})
	}
}

func TestIsConfiguration_MatchesCFGModule(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsConfiguration(errors.Configuration("x")))
	assert.True(t, errors.IsConfiguration(errors.New(errors.ErrCodeProfileUnknown, "x")))
	assert.True(t, errors.IsConfiguration(fmt.Errorf("wrap: %w", errors.New(errors.ErrCodeResolutionInvalid, "x"))))
	assert.False(t, errors.IsConfiguration(errors.Internal("x")))
	assert.False(t, errors.IsConfiguration(nil))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeJobPermanentFailure,
		errors.GetCode(errors.PermanentFailure("done trying", nil)))
}

func TestConvenienceFactories(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  *errors.AppError
		code errors.ErrorCode
	}{
		{"NotFound", errors.NotFound("x"), errors.ErrCodeNotFound},
		{"InvalidParam", errors.InvalidParam("x"), errors.ErrCodeBadRequest},
		{"Internal", errors.Internal("x"), errors.ErrCodeInternal},
		{"Conflict", errors.Conflict("x"), errors.ErrCodeConflict},
		{"RateLimit", errors.RateLimit("x"), errors.ErrCodeTooManyRequests},
		{"Configuration", errors.Configuration("x"), errors.ErrCodeConfigInvalid},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.NotNil(t, tc.err)
			assert.Equal(t, tc.code, tc.err.Code)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeQuantumNotFound, "x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeJobNotFound, "x")))
	assert.True(t, errors.IsNotFound(fmt.Errorf("outer: %w", errors.NotFound("inner"))))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
	assert.False(t, errors.IsNotFound(nil))
}
