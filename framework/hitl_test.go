package framework

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskLevelOrderingAndNames(t *testing.T) {
	assert.True(t, RiskSafe < RiskLow && RiskLow < RiskMedium && RiskMedium < RiskHigh && RiskHigh < RiskCritical)
	for _, level := range []RiskLevel{RiskSafe, RiskLow, RiskMedium, RiskHigh, RiskCritical} {
		parsed, err := ParseRiskLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, parsed)
	}
	_, err := ParseRiskLevel("extreme")
	assert.Error(t, err)
}

func waitForPending(t *testing.T, broker *HITLBroker) ApprovalRequest {
	t.Helper()
	var pending []ApprovalRequest
	require.Eventually(t, func() bool {
		pending = broker.PendingRequests()
		return len(pending) == 1
	}, time.Second, 5*time.Millisecond)
	return pending[0]
}

func TestHITLBrokerApprovesHighRisk(t *testing.T) {
	broker := NewHITLBroker(time.Second)
	events, cancel := broker.Subscribe(4)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		ok, err := broker.AskApproval(context.Background(), ApprovalRequest{Operation: "delete_file", Risk: RiskHigh})
		assert.NoError(t, err)
		done <- ok
	}()

	req := waitForPending(t, broker)
	assert.NotEmpty(t, req.ID)
	require.NoError(t, broker.Resolve(ApprovalDecision{RequestID: req.ID, Approved: true}))
	assert.True(t, <-done)

	first := <-events
	assert.Equal(t, HITLEventRequested, first.Type)
	second := <-events
	assert.Equal(t, HITLEventResolved, second.Type)
	assert.Empty(t, broker.PendingRequests())
}

func TestHITLBrokerCriticalNeedsExactPhrase(t *testing.T) {
	broker := NewHITLBroker(time.Second)
	done := make(chan bool, 1)
	go func() {
		ok, _ := broker.AskApproval(context.Background(), ApprovalRequest{
			Operation: "run_command",
			Risk:      RiskCritical,
			Phrase:    DefaultConfirmationPhrase,
		})
		done <- ok
	}()

	req := waitForPending(t, broker)
	require.NoError(t, broker.Resolve(ApprovalDecision{RequestID: req.ID, Approved: true, Confirmation: "yes"}))
	assert.False(t, <-done, "plain yes must not approve a critical operation")
}

func TestHITLBrokerTimesOut(t *testing.T) {
	broker := NewHITLBroker(20 * time.Millisecond)
	ok, err := broker.AskApproval(context.Background(), ApprovalRequest{Operation: "git_push", Risk: RiskHigh})
	assert.False(t, ok)
	require.Error(t, err)
	assert.Empty(t, broker.PendingRequests())
}

func TestHITLBrokerResolveUnknown(t *testing.T) {
	broker := NewHITLBroker(0)
	assert.Error(t, broker.Resolve(ApprovalDecision{RequestID: "nope"}))
}
