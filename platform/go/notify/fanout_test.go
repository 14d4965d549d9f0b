package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	calls []string
	fail  map[string]error
}

func (m *mockPublisher) SendToTopic(_ context.Context, topic, _, _ string, _ map[string]string, _ string) error {
	m.calls = append(m.calls, topic)
	if err, ok := m.fail[topic]; ok {
		return err
	}
	return nil
}

type mockMessenger struct {
	templates int
	texts     int
	err       error
}

func (m *mockMessenger) SendText(context.Context, string, string) error {
	m.texts++
	return m.err
}

func (m *mockMessenger) SendTemplate(context.Context, string, string, string, ...string) error {
	m.templates++
	return m.err
}

func event() VisitorEvent {
	return VisitorEvent{
		SocietyID:     "S1",
		FlatID:        "f-1",
		FlatNo:        "A-101",
		VisitorID:     "v-1",
		VisitorType:   "GUEST",
		VisitorPhone:  "9999999999",
		Status:        "PENDING",
		ResidentPhone: "919876543210",
	}
}

func TestTopicsIncludeLegacyWhenDistinct(t *testing.T) {
	t.Parallel()

	f := NewFanout(&mockPublisher{}, nil, FanoutConfig{}, nil)

	topics := f.Topics(event())
	require.Equal(t, []string{"S1_A_101", "S1_F_1"}, topics)

	// A unit whose id-derived topic collides with the canonical one gets a
	// single target.
	e := event()
	e.FlatID = "A101"
	require.Equal(t, []string{"S1_A_101"}, f.Topics(e))
}

func TestVisitorCreatedPartialFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	publisher := &mockPublisher{fail: map[string]error{"S1_F_1": errors.New("unsubscribed")}}
	f := NewFanout(publisher, nil, FanoutConfig{}, nil)

	require.True(t, f.VisitorCreated(context.Background(), event()))
	require.Equal(t, []string{"S1_A_101", "S1_F_1"}, publisher.calls)
}

func TestVisitorCreatedAllChannelsFail(t *testing.T) {
	t.Parallel()

	publisher := &mockPublisher{fail: map[string]error{
		"S1_A_101": errors.New("down"),
		"S1_F_1":   errors.New("down"),
	}}
	messenger := &mockMessenger{err: errors.New("graph 500")}
	f := NewFanout(publisher, messenger, FanoutConfig{ApprovalTemplate: "visitor_approval"}, nil)

	// Nothing raised, just a false overall result.
	require.False(t, f.VisitorCreated(context.Background(), event()))
	require.Equal(t, 1, messenger.templates)
}

func TestVisitorCreatedUsesTextWithoutTemplate(t *testing.T) {
	t.Parallel()

	messenger := &mockMessenger{}
	f := NewFanout(&mockPublisher{}, messenger, FanoutConfig{}, nil)

	require.True(t, f.VisitorCreated(context.Background(), event()))
	require.Equal(t, 1, messenger.texts)
	require.Zero(t, messenger.templates)
}

func TestVisitorDecidedPublishesToTopics(t *testing.T) {
	t.Parallel()

	publisher := &mockPublisher{}
	f := NewFanout(publisher, nil, FanoutConfig{}, nil)

	e := event()
	e.Status = "APPROVED"
	require.True(t, f.VisitorDecided(context.Background(), e))
	require.Len(t, publisher.calls, 2)
}
