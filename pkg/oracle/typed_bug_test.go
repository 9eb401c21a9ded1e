package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movefuzz/pkg/types"
)

// TestTypedBugAbortMode 测试abort code模式
func TestTypedBugAbortMode(t *testing.T) {
	o := NewTypedBugOracle(TypedBugAbortCode, 0)

	t.Run("SentinelAbort", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:    types.StatusAborted,
			AbortCode: types.NewFlexibleUint64(DefaultCrashAbortCode),
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, "TypedBugOracle", findings[0].Oracle)
		assert.Equal(t, types.SeverityCritical, findings[0].Severity)
	})

	t.Run("OtherAbortCode", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:    types.StatusAborted,
			AbortCode: types.NewFlexibleUint64(42),
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		assert.Empty(t, findings, "Ordinary aborts are not marker bugs")
	})

	t.Run("SentinelCodeWithoutAbort", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:    types.StatusSuccess,
			AbortCode: types.NewFlexibleUint64(DefaultCrashAbortCode),
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("CrashEventIgnoredInAbortMode", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:         types.StatusSuccess,
			AllowedSuccess: true,
			Events: []types.ContractEvent{
				{Module: CrashEventModule, Name: CrashEventName},
			},
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		assert.Empty(t, findings, "Modes are mutually exclusive")
	})
}

// TestTypedBugCustomAbortCode 测试自定义哨兵值
func TestTypedBugCustomAbortCode(t *testing.T) {
	o := NewTypedBugOracle(TypedBugAbortCode, 777)

	effects := &types.ExecutionEffects{
		Status:    types.StatusAborted,
		AbortCode: types.NewFlexibleUint64(777),
	}
	findings, err := o.DoneExecution(effects)
	require.NoError(t, err)
	assert.Len(t, findings, 1)

	effects.AbortCode = types.NewFlexibleUint64(DefaultCrashAbortCode)
	findings, err = o.DoneExecution(effects)
	require.NoError(t, err)
	assert.Empty(t, findings, "Default sentinel should not match a custom one")
}

// TestTypedBugEventMode 测试标记事件模式
func TestTypedBugEventMode(t *testing.T) {
	o := NewTypedBugOracle(TypedBugCrashEvent, 0)

	t.Run("CrashEventDetected", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:         types.StatusSuccess,
			AllowedSuccess: true,
			Events: []types.ContractEvent{
				{Module: "vault", Name: "Deposit"},
				{Module: CrashEventModule, Name: CrashEventName, Payload: map[string]any{"k": 1}},
				{Module: CrashEventModule, Name: CrashEventName},
			},
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		require.Len(t, findings, 1, "Only the first match counts")
		assert.Equal(t, types.SeverityCritical, findings[0].Severity)
	})

	t.Run("NotAllowedSuccess", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:         types.StatusSuccess,
			AllowedSuccess: false,
			Events: []types.ContractEvent{
				{Module: CrashEventModule, Name: CrashEventName},
			},
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		assert.Empty(t, findings, "Gated on the allowed-success verdict")
	})

	t.Run("OtherEventsIgnored", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:         types.StatusSuccess,
			AllowedSuccess: true,
			Events: []types.ContractEvent{
				{Module: "vault", Name: "Crash"},
				{Module: CrashEventModule, Name: "Deposit"},
			},
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		assert.Empty(t, findings, "Both module and name must match")
	})

	t.Run("SentinelAbortIgnoredInEventMode", func(t *testing.T) {
		effects := &types.ExecutionEffects{
			Status:    types.StatusAborted,
			AbortCode: types.NewFlexibleUint64(DefaultCrashAbortCode),
		}
		findings, err := o.DoneExecution(effects)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})
}

// TestTypedBugNilEffects 测试nil效果直接跳过
func TestTypedBugNilEffects(t *testing.T) {
	o := NewTypedBugOracle(TypedBugAbortCode, 0)
	findings, err := o.DoneExecution(nil)
	require.NoError(t, err)
	assert.Empty(t, findings)
}
